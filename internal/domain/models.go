package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConfidenceThreshold is the minimum confidence at which an extraction result is
// accepted without trying further attachments.
const ConfidenceThreshold = 0.5

// IntakeMessage is one inbound message queued for extraction.
type IntakeMessage struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Subject       string          `db:"subject" json:"subject"`
	Sender        string          `db:"sender" json:"sender"`
	ReceivedAt    *time.Time      `db:"received_at" json:"received_at"`
	Attachments   AttachmentList  `db:"attachments" json:"attachments"`
	Status        MessageStatus   `db:"status" json:"status"`
	ExtractedData json.RawMessage `db:"extracted_data" json:"extracted_data"`
	ErrorMessage  *string         `db:"error_message" json:"error_message"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// AttachmentLocator is the opaque reference needed to download one attachment
// from the mailbox: mailbox name, message UID and MIME part path (e.g. "2" or "1.2").
type AttachmentLocator struct {
	Mailbox string `json:"mailbox"`
	UID     uint32 `json:"uid"`
	Part    string `json:"part"`
}

func (l AttachmentLocator) String() string {
	return fmt.Sprintf("%s/%d/%s", l.Mailbox, l.UID, l.Part)
}

// AttachmentDescriptor is the immutable metadata of one file attached to a message.
type AttachmentDescriptor struct {
	Name     string            `json:"name"`
	MimeType string            `json:"mime_type"`
	Size     *int64            `json:"size,omitempty"`
	Locator  AttachmentLocator `json:"locator"`
}

// AttachmentList is the ordered attachment list stored as JSONB.
type AttachmentList []AttachmentDescriptor

// Value implements driver.Valuer.
func (a AttachmentList) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal([]AttachmentDescriptor(a))
	if err != nil {
		return nil, fmt.Errorf("AttachmentList.Value: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (a *AttachmentList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = AttachmentList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("AttachmentList.Scan: unsupported type %T", src)
	}
	var list []AttachmentDescriptor
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("AttachmentList.Scan: %w", err)
	}
	*a = list
	return nil
}

// ExtractionResult is the normalized output of processing exactly one attachment,
// whichever extractor produced it. Absent fields are omitted from the JSON form,
// so an empty result serializes as {"confidence":0}.
type ExtractionResult struct {
	SupplierName      *string          `json:"supplier_name,omitempty"`
	TaxID             *string          `json:"tax_id,omitempty"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	DocumentDate      *string          `json:"document_date,omitempty"`
	InvoiceNumber     *string          `json:"invoice_number,omitempty"`
	Description       string           `json:"description,omitempty"`
	PaymentMethod     *PaymentMethod   `json:"payment_method,omitempty"`
	SuggestedCategory *string          `json:"suggested_category,omitempty"`
	Confidence        float64          `json:"confidence"`

	// Provenance, filled in by the pipeline for the accepted result.
	SourceAttachment string    `json:"source_attachment,omitempty"`
	Extractor        Extractor `json:"extractor,omitempty"`

	// RawResponse is the unparsed model output kept for audit. Not authoritative.
	RawResponse string `json:"raw_response,omitempty"`
}

// MarshalJSON writes amount as a bare JSON number that keeps at least two
// decimal places, e.g. 150.00 rather than the quoted "150" decimal emits.
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	type plain ExtractionResult
	out := struct {
		plain
		Amount json.RawMessage `json:"amount,omitempty"`
	}{plain: plain(r)}
	if r.Amount != nil {
		places := int32(2)
		if exp := r.Amount.Exponent(); exp < -places {
			places = -exp
		}
		out.Amount = json.RawMessage(r.Amount.StringFixed(places))
	}
	return json.Marshal(out)
}

// Accepted reports whether the result clears the confidence threshold.
func (r *ExtractionResult) Accepted() bool {
	return r != nil && r.Confidence >= ConfidenceThreshold
}

// EmptyExtraction is the placeholder persisted when nothing usable was extracted.
func EmptyExtraction() *ExtractionResult {
	return &ExtractionResult{Confidence: 0}
}

// StringPtr returns a pointer to the trimmed s, or nil when s is blank.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
}

// NormalizeDate converts a date or timestamp in one of the accepted layouts to
// YYYY-MM-DD. Timestamps keep their own calendar date (no timezone shift).
// Unparseable input yields nil.
func NormalizeDate(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := t.Format("2006-01-02")
			return &d
		}
	}
	if len(raw) > 10 {
		if t, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			d := t.Format("2006-01-02")
			return &d
		}
	}
	return nil
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}
