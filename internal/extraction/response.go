package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"intake/internal/domain"
)

var (
	openingFence = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\r?\n?")
	closingFence = regexp.MustCompile("\r?\n?[ \t]*```$")
)

// fieldAliases maps Portuguese keys some model replies use to the canonical names.
var fieldAliases = map[string]string{
	"confianca":          "confidence",
	"confiança":          "confidence",
	"fornecedor":         "supplier_name",
	"cnpj":               "tax_id",
	"valor":              "amount",
	"valor_total":        "amount",
	"data":               "document_date",
	"data_emissao":       "document_date",
	"numero_nota":        "invoice_number",
	"descricao":          "description",
	"forma_pagamento":    "payment_method",
	"categoria_sugerida": "suggested_category",
}

// StripCodeFences removes a surrounding Markdown code fence (```json ... ``` or
// bare ``` ... ```). Text without a fence is returned trimmed. Applying it twice
// gives the same result as applying it once.
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = openingFence.ReplaceAllString(s, "")
	s = closingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseExtractionText turns the model's free-text reply into an ExtractionResult:
// strip fences, decode JSON, rename aliases, validate the shape, normalize values.
// The raw text is attached as RawResponse.
func ParseExtractionText(text string) (*domain.ExtractionResult, error) {
	cleaned := StripCodeFences(text)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, &MalformedExtractionError{Excerpt: Truncate(cleaned, 100), Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &MalformedExtractionError{Excerpt: Truncate(cleaned, 100), Err: errors.New("unexpected data after JSON object")}
	}
	if payload == nil {
		return nil, &MalformedExtractionError{Excerpt: Truncate(cleaned, 100), Err: errors.New("payload is null")}
	}

	applyAliases(payload)
	if err := validateShape(payload); err != nil {
		return nil, &MalformedExtractionError{Excerpt: Truncate(cleaned, 100), Err: err}
	}

	result := &domain.ExtractionResult{
		SupplierName:      domain.StringPtr(stringField(payload, "supplier_name")),
		TaxID:             domain.StringPtr(stringField(payload, "tax_id")),
		Amount:            parseAmount(payload["amount"]),
		DocumentDate:      domain.NormalizeDate(stringField(payload, "document_date")),
		InvoiceNumber:     domain.StringPtr(stringField(payload, "invoice_number")),
		Description:       strings.TrimSpace(stringField(payload, "description")),
		PaymentMethod:     domain.ParsePaymentMethod(stringField(payload, "payment_method")),
		SuggestedCategory: domain.StringPtr(stringField(payload, "suggested_category")),
		RawResponse:       text,
	}
	if n, ok := payload["confidence"].(json.Number); ok {
		c, err := n.Float64()
		if err != nil {
			return nil, &MalformedExtractionError{Excerpt: Truncate(cleaned, 100), Err: fmt.Errorf("confidence: %w", err)}
		}
		result.Confidence = c
	}
	return result, nil
}

func applyAliases(payload map[string]any) {
	for from, to := range fieldAliases {
		v, ok := payload[from]
		if !ok {
			continue
		}
		if _, exists := payload[to]; !exists {
			payload[to] = v
		}
		delete(payload, from)
	}
}

// stringField returns the field as text. Numbers are kept verbatim so that
// identifiers such as invoice numbers survive.
func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// parseAmount accepts JSON numbers and strings such as "150.00", "R$ 1.234,56"
// or "1234,56". Anything else yields nil.
func parseAmount(v any) *decimal.Decimal {
	var raw string
	switch t := v.(type) {
	case json.Number:
		raw = t.String()
	case string:
		raw = normalizeMoneyString(t)
	default:
		return nil
	}
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}

func normalizeMoneyString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	return s
}
