// Package vendor canonicalizes noisy free-text vendor names into stable
// identities and maintains per-identity spend aggregates.
package vendors

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
)

// DefaultFuzzyThreshold is the minimum similarity ratio (0-100) for a fuzzy
// match to be accepted.
const DefaultFuzzyThreshold = 85

var (
	// Corporate suffixes stripped from the end of vendor names
	suffixRe = regexp.MustCompile(`(?i)\s+(INC|LLC|LTD|CORP|CO|CORPORATION|LIMITED)\.?$`)
	// Everything outside letters, digits, underscore, whitespace and hyphen
	specialRe = regexp.MustCompile(`[^\w\s-]`)
)

// Vendor categories assigned by keyword inference
const (
	CategoryCloud    = "Cloud Services"
	CategorySoftware = "Software"
	CategorySupplies = "Office Supplies"
	CategoryTelecom  = "Telecommunications"
	CategoryOther    = "Other"
)

// aliasMap maps cleaned, uppercased spellings to canonical identities
var aliasMap = map[string]string{
	"AMZN":                "Amazon",
	"AMAZON":              "Amazon",
	"AMAZONCOM":           "Amazon",
	"AWS":                 "Amazon Web Services",
	"AMAZON WEB SERVICES": "Amazon Web Services",
	"MSFT":                "Microsoft",
	"MICROSOFT":           "Microsoft",
	"MICROSOFT CORP":      "Microsoft",
	"GOOG":                "Google",
	"GOOGLE":              "Google",
	"GOOGLE LLC":          "Google",
	"GOOGLE CLOUD":        "Google Cloud Platform",
	"GCP":                 "Google Cloud Platform",
	"AAPL":                "Apple",
	"APPLE":               "Apple",
	"APPLE INC":           "Apple",
	"META":                "Meta",
	"FACEBOOK":            "Meta",
	"FB":                  "Meta",
}

// KnownNames supplies the canonical vendor names already in the store, so
// near-duplicate spellings of previously seen vendors converge on the
// existing identity.
type KnownNames interface {
	NormalizedNames(ctx context.Context) ([]string, error)
}

// Normalizer resolves raw vendor strings to canonical identities using, in
// order: exact alias lookup, fuzzy alias lookup, fuzzy lookup against known
// canonical names, and finally title-casing the cleaned input.
type Normalizer struct {
	threshold float64
	known     KnownNames
	logger    *zap.Logger
}

// NewNormalizer creates a normalizer. A threshold <= 0 falls back to the
// default of 85.
func NewNormalizer(threshold int, known KnownNames, logger *zap.Logger) *Normalizer {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return &Normalizer{
		threshold: float64(threshold),
		known:     known,
		logger:    logger,
	}
}

// Normalize resolves a raw vendor string to its canonical identity
func (n *Normalizer) Normalize(ctx context.Context, rawName string) string {
	if strings.TrimSpace(rawName) == "" {
		return models.UnknownVendor
	}

	clean := cleanName(rawName)
	if clean == "" {
		return models.UnknownVendor
	}
	cleanUpper := strings.ToUpper(clean)

	if canonical, ok := aliasMap[cleanUpper]; ok {
		return canonical
	}

	if canonical := n.fuzzyAlias(cleanUpper); canonical != "" {
		return canonical
	}

	if canonical := n.fuzzyKnown(ctx, cleanUpper); canonical != "" {
		return canonical
	}

	return titleCase(clean)
}

// fuzzyAlias scores the cleaned name against every alias key and returns the
// best mapping at or above the threshold. Keys are visited in sorted order so
// ties resolve deterministically.
func (n *Normalizer) fuzzyAlias(cleanUpper string) string {
	keys := make([]string, 0, len(aliasMap))
	for k := range aliasMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var best string
	var bestScore float64
	for _, key := range keys {
		score := ratio(cleanUpper, key)
		if score > bestScore && score >= n.threshold {
			bestScore = score
			best = aliasMap[key]
		}
	}
	return best
}

// fuzzyKnown scores the cleaned name against canonical names already in the
// store. Lookup failures degrade to no match.
func (n *Normalizer) fuzzyKnown(ctx context.Context, cleanUpper string) string {
	names, err := n.known.NormalizedNames(ctx)
	if err != nil {
		n.logger.Warn("Failed to load known vendor names", zap.Error(err))
		return ""
	}

	for _, name := range names {
		if ratio(cleanUpper, strings.ToUpper(name)) >= n.threshold {
			return name
		}
	}
	return ""
}

// ratio is a 0-100 normalized edit-distance similarity
func ratio(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil) * 100
}

// cleanName strips corporate suffixes and special characters, then collapses
// internal whitespace.
func cleanName(name string) string {
	name = suffixRe.ReplaceAllString(name, "")
	name = specialRe.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}

// titleCase uppercases the first letter of each word, lowercasing the rest.
// A word starts after any non-letter, so hyphenated names capitalize each
// segment ("mary-jane co" -> "Mary-Jane Co").
func titleCase(s string) string {
	r := []rune(strings.Join(strings.Fields(strings.ToLower(s)), " "))
	prevLetter := false
	for i, c := range r {
		if unicode.IsLetter(c) && !prevLetter {
			r[i] = unicode.ToUpper(c)
		}
		prevLetter = unicode.IsLetter(c)
	}
	return string(r)
}

// InferCategory classifies a canonical vendor name by keyword
func InferCategory(vendorName string) string {
	upper := strings.ToUpper(vendorName)

	switch {
	case containsAny(upper, "AWS", "CLOUD", "AZURE", "GCP", "GOOGLE CLOUD"):
		return CategoryCloud
	case containsAny(upper, "OFFICE", "MICROSOFT", "SOFTWARE"):
		return CategorySoftware
	case containsAny(upper, "AMAZON", "SUPPLIES"):
		return CategorySupplies
	case containsAny(upper, "TELECOM", "VERIZON", "AT&T", "PHONE"):
		return CategoryTelecom
	default:
		return CategoryOther
	}
}

func containsAny(s string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
