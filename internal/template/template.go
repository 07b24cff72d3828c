// Package template implements the reusable extraction templates: a declarative
// YAML description of one vendor's invoice layout, matched by keywords and
// applied through per-field regular expressions.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/kevinshaw/invoice-intel/internal/models"
)

// Template describes how to extract fields from one vendor's documents.
// Keywords gate the match; Fields maps field names to capture-group regexes.
type Template struct {
	Issuer   string            `yaml:"issuer"`
	Keywords []string          `yaml:"keywords"`
	Fields   map[string]string `yaml:"fields"`
	Options  Options           `yaml:"options,omitempty"`
}

// Options carries optional static values a template may assign
type Options struct {
	Currency    string `yaml:"currency,omitempty"`
	Category    string `yaml:"category,omitempty"`
	Purchaser   string `yaml:"purchaser,omitempty"`
	IsRecurring bool   `yaml:"is_recurring,omitempty"`
}

// Parse decodes and validates a YAML template body
func Parse(body []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template YAML: %w", err)
	}

	if t.Issuer == "" {
		return nil, fmt.Errorf("template has no issuer")
	}
	if len(t.Keywords) == 0 {
		return nil, fmt.Errorf("template %q has no keywords", t.Issuer)
	}
	if _, ok := t.Fields["amount"]; !ok {
		return nil, fmt.Errorf("template %q has no amount field", t.Issuer)
	}
	for name, pattern := range t.Fields {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("template %q field %q: invalid pattern: %w", t.Issuer, name, err)
		}
	}

	return &t, nil
}

// Matches reports whether every keyword appears in the document text,
// case-insensitively.
func (t *Template) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range t.Keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// Apply runs the template's field patterns over the document text and builds
// an extraction payload. It returns false when the amount field cannot be
// located or parsed; partial results without an amount are useless.
func (t *Template) Apply(text string) (*models.ExtractedData, bool) {
	data := &models.ExtractedData{
		Vendor:      t.Issuer,
		Category:    t.Options.Category,
		Purchaser:   t.Options.Purchaser,
		IsRecurring: t.Options.IsRecurring,
	}
	if data.Category == "" {
		data.Category = models.DefaultCategory
	}

	amount, ok := t.extractAmount(text)
	if !ok {
		return nil, false
	}
	data.TotalAmount = amount

	if v := t.extractField("invoice_number", text); v != "" {
		data.InvoiceNumber = v
	}
	if v := t.extractField("date", text); v != "" {
		data.Date = v
	}
	if v := t.extractField("purchaser", text); v != "" {
		data.Purchaser = v
	}

	return data, true
}

func (t *Template) extractAmount(text string) (decimal.Decimal, bool) {
	raw := t.extractField("amount", text)
	if raw == "" {
		return decimal.Zero, false
	}

	raw = strings.NewReplacer(",", "", "$", "", "¥", "", "€", "", "£", "").Replace(raw)
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// extractField applies one field pattern and returns the first capture group,
// or the whole match when the pattern has no groups.
func (t *Template) extractField(name, text string) string {
	pattern, ok := t.Fields[name]
	if !ok {
		return ""
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return ""
	}

	m := re.FindStringSubmatch(text)
	switch {
	case len(m) > 1:
		return strings.TrimSpace(m[1])
	case len(m) == 1:
		return strings.TrimSpace(m[0])
	default:
		return ""
	}
}
