package extraction

import (
	"strings"

	"intake/internal/domain"
	"intake/internal/port"
)

// BuildExtractionPrompt returns the instruction sent with an image or PDF payload.
// Both variants demand the same JSON object.
func BuildExtractionPrompt(kind port.MediaKind) string {
	var intro string
	switch kind {
	case port.MediaPDF:
		intro = `You are a financial document extraction assistant for a construction company. The attached PDF is an invoice, receipt or bill received by e-mail. Read every page, including scanned pages, and extract the purchase data.`
	default:
		intro = `You are a financial document extraction assistant for a construction company. The attached image is a photo or scan of a receipt, invoice or bill. Read all visible text, even if the photo is skewed or partially blurred, and extract the purchase data.`
	}

	methods := make([]string, len(domain.PaymentMethods))
	for i, m := range domain.PaymentMethods {
		methods[i] = `"` + string(m) + `"`
	}

	return intro + `

Return a single JSON object with exactly these keys:
{
  "supplier_name": string or null,      // trade name of the seller; legal name if no trade name
  "tax_id": string or null,             // seller CNPJ or CPF, digits only
  "amount": number or null,             // total amount paid, decimal with dot separator, e.g. 1234.56
  "document_date": string or null,      // issue date in ISO format YYYY-MM-DD
  "invoice_number": string or null,     // invoice / receipt number
  "description": string,                // short description of the items purchased
  "payment_method": string or null,     // one of ` + strings.Join(methods, ", ") + `
  "suggested_category": string or null, // short expense category, e.g. "materials", "tools", "fuel", "services"
  "confidence": number                  // your confidence in the extracted data, from 0.0 to 1.0
}

Rules:
- Use null for any field you cannot read. Never invent values.
- "amount" must be the final total, not a subtotal or a single line item.
- If the document is not a receipt or invoice, return confidence 0.
- Output ONLY the raw JSON object. No markdown, no code fences, no explanation.`
}
