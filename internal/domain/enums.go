package domain

// MessageStatus represents the lifecycle of a queued intake message.
//
//	pending -> processing -> needs_review | error
//
// error -> pending is a caller-facing requeue; the pipeline itself only moves
// pending/error messages to processing and then to a terminal state for the run.
type MessageStatus string

const (
	MessageStatusPending     MessageStatus = "pending"
	MessageStatusProcessing  MessageStatus = "processing"
	MessageStatusNeedsReview MessageStatus = "needs_review"
	MessageStatusError       MessageStatus = "error"
)

// EligibleStatuses are the statuses a batch run may claim.
var EligibleStatuses = []MessageStatus{MessageStatusPending, MessageStatusError}

// IsEligible reports whether a message in status s may be claimed by a batch run.
func (s MessageStatus) IsEligible() bool {
	return s == MessageStatusPending || s == MessageStatusError
}

// PaymentMethod is the normalized payment vocabulary of an extraction result.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentPix      PaymentMethod = "pix"
	PaymentCard     PaymentMethod = "card"
	PaymentBankSlip PaymentMethod = "bank_slip"
	PaymentCheck    PaymentMethod = "check"
)

// PaymentMethods lists the accepted payment vocabulary in prompt order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentPix, PaymentCard, PaymentBankSlip, PaymentCheck}

// paymentAliases maps spellings seen in model output and Brazilian documents
// to the normalized vocabulary.
var paymentAliases = map[string]PaymentMethod{
	"cash":           PaymentCash,
	"dinheiro":       PaymentCash,
	"especie":        PaymentCash,
	"espécie":        PaymentCash,
	"pix":            PaymentPix,
	"card":           PaymentCard,
	"cartao":         PaymentCard,
	"cartão":         PaymentCard,
	"credit_card":    PaymentCard,
	"debit_card":     PaymentCard,
	"cartao_credito": PaymentCard,
	"cartao_debito":  PaymentCard,
	"bank_slip":      PaymentBankSlip,
	"bank-slip":      PaymentBankSlip,
	"boleto":         PaymentBankSlip,
	"check":          PaymentCheck,
	"cheque":         PaymentCheck,
}

// ParsePaymentMethod normalizes a free-form payment method. Unknown values yield nil.
func ParsePaymentMethod(raw string) *PaymentMethod {
	key := normalizeKey(raw)
	if key == "" {
		return nil
	}
	pm, ok := paymentAliases[key]
	if !ok {
		return nil
	}
	return &pm
}

// Extractor identifies which strategy produced an extraction result.
type Extractor string

const (
	ExtractorVisionImage Extractor = "vision_image"
	ExtractorVisionPDF   Extractor = "vision_pdf"
	ExtractorNFeXML      Extractor = "nfe_xml"
)
