package ai

import (
	"fmt"
	"strings"

	"github.com/kevinshaw/invoice-intel/internal/models"
)

// templatePromptMaxText caps how much document text goes into a template
// generation prompt.
const templatePromptMaxText = 2000

// buildExtractionPrompt builds the structured-extraction prompt
func buildExtractionPrompt(docText string) string {
	return fmt.Sprintf(`Extract invoice information from this text and return ONLY a valid JSON object with no additional text or markdown.

Invoice Text:
%s

Return ONLY this JSON format (no explanations, no markdown):
{
    "vendor": "vendor name here",
    "invoice_number": "invoice number or null",
    "date": "MM/DD/YYYY or null",
    "total_amount": 0.00,
    "category": "category here",
    "purchaser": "purchaser name or null",
    "is_recurring": false,
    "line_items": []
}

Extract:
- vendor: Company/business name from top of invoice
- invoice_number: Invoice/order/receipt number
- date: Date in MM/DD/YYYY format
- total_amount: Total amount as number
- purchaser: Name of person/entity who made the purchase if shown on invoice, otherwise null
- category: Classify into ONE of these categories based on vendor and line items:
%s
- is_recurring: true if this appears to be a subscription or recurring charge (monthly/annual), false otherwise
- line_items: Array of {"description", "quantity", "unit_price", "total"} for each billed line, or [] if unreadable`,
		docText, categoryGuide())
}

func categoryGuide() string {
	var b strings.Builder
	for _, c := range models.InvoiceCategories {
		fmt.Fprintf(&b, "  * %q\n", c)
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildTemplatePrompt describes an already-extracted invoice and asks the
// model to synthesize a reusable YAML extraction template for the vendor.
func BuildTemplatePrompt(docText string, data *models.ExtractedData) string {
	if len(docText) > templatePromptMaxText {
		docText = docText[:templatePromptMaxText]
	}

	return fmt.Sprintf(`Analyze this invoice and create a YAML extraction template.

Invoice text:
%s

Extracted data:
- Vendor: %s
- Invoice Number: %s
- Date: %s
- Amount: %s

Create a YAML template with:
- issuer: %q
- keywords: 3-5 unique strings that appear on every invoice from this vendor
- fields: regex patterns with one capture group each for invoice_number, date and amount
- options: currency, and category if obvious

Return ONLY valid YAML, no markdown or explanations.`,
		docText,
		data.Vendor,
		data.InvoiceNumber,
		data.Date,
		data.TotalAmount.String(),
		data.Vendor)
}

// buildChatSystemPrompt frames the chat model as an analyst over the
// caller-provided store context.
func buildChatSystemPrompt(contextText string) string {
	return fmt.Sprintf(`You are an AI assistant for an invoice intelligence platform.
You have access to the following invoice and vendor data:

%s

Answer the user's question based on this data. Be specific and provide numbers when relevant.
If you cannot answer from the data provided, say so.`, contextText)
}
