package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStatus_IsEligible(t *testing.T) {
	assert.True(t, MessageStatusPending.IsEligible())
	assert.True(t, MessageStatusError.IsEligible())
	assert.False(t, MessageStatusProcessing.IsEligible())
	assert.False(t, MessageStatusNeedsReview.IsEligible())
}

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		in   string
		want PaymentMethod
	}{
		{"PIX", PaymentPix},
		{" boleto ", PaymentBankSlip},
		{"Cartão", PaymentCard},
		{"credit card", PaymentCard},
		{"dinheiro", PaymentCash},
		{"cheque", PaymentCheck},
		{"bank-slip", PaymentBankSlip},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParsePaymentMethod(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	assert.Nil(t, ParsePaymentMethod(""))
	assert.Nil(t, ParsePaymentMethod("crypto"))
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-10", "2024-03-10"},
		{"2024-03-10T23:30:00-03:00", "2024-03-10"},
		{"2024-03-10T10:00:00", "2024-03-10"},
		{"2024-03-10 10:00:00", "2024-03-10"},
		{"10/03/2024", "2024-03-10"},
		{"10-03-2024", "2024-03-10"},
		{"2024/03/10", "2024-03-10"},
		{"2024-03-10T10:00:00.123+0000", "2024-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeDate(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	assert.Nil(t, NormalizeDate(""))
	assert.Nil(t, NormalizeDate("March 10th"))
	assert.Nil(t, NormalizeDate("31/02/2024"))
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr("   "))
	require.NotNil(t, StringPtr(" Acme "))
	assert.Equal(t, "Acme", *StringPtr(" Acme "))
}

func TestAttachmentList_ValueAndScan(t *testing.T) {
	size := int64(2048)
	list := AttachmentList{{
		Name:     "nota.pdf",
		MimeType: "application/pdf",
		Size:     &size,
		Locator:  AttachmentLocator{Mailbox: "INBOX", UID: 7, Part: "1.2"},
	}}

	v, err := list.Value()
	require.NoError(t, err)

	var scanned AttachmentList
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, list, scanned)
	assert.Equal(t, "INBOX/7/1.2", scanned[0].Locator.String())

	require.NoError(t, scanned.Scan(`[]`))
	assert.Empty(t, scanned)
	require.NoError(t, scanned.Scan(nil))
	assert.NotNil(t, scanned)
	assert.Error(t, scanned.Scan(42))
	assert.Error(t, scanned.Scan([]byte("{")))

	empty, err := AttachmentList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), empty)
}

func TestExtractionResult_JSON(t *testing.T) {
	b, err := json.Marshal(EmptyExtraction())
	require.NoError(t, err)
	assert.JSONEq(t, `{"confidence":0}`, string(b))

	amount := decimal.RequireFromString("1234.56")
	pix := PaymentPix
	r := &ExtractionResult{
		SupplierName:  StringPtr("Acme"),
		Amount:        &amount,
		PaymentMethod: &pix,
		Confidence:    0.9,
		Extractor:     ExtractorVisionPDF,
	}
	b, err = json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"supplier_name":"Acme","amount":1234.56,"payment_method":"pix","confidence":0.9,"extractor":"vision_pdf"}`, string(b))
}

func TestExtractionResult_AmountKeepsScale(t *testing.T) {
	for in, want := range map[string]string{
		"150":    `"amount":150.00`,
		"150.00": `"amount":150.00`,
		"42.5":   `"amount":42.50`,
		"0.125":  `"amount":0.125`,
	} {
		amount := decimal.RequireFromString(in)
		b, err := json.Marshal(ExtractionResult{Amount: &amount, Confidence: 0.7})
		require.NoError(t, err)
		assert.Contains(t, string(b), want, in)

		var back ExtractionResult
		require.NoError(t, json.Unmarshal(b, &back))
		require.NotNil(t, back.Amount)
		assert.True(t, back.Amount.Equal(amount), in)
	}
}

func TestExtractionResult_Accepted(t *testing.T) {
	var nilResult *ExtractionResult
	assert.False(t, nilResult.Accepted())
	assert.False(t, (&ExtractionResult{Confidence: 0.49}).Accepted())
	assert.True(t, (&ExtractionResult{Confidence: ConfidenceThreshold}).Accepted())
}

func TestBatchSummary_AddAndNeedsAttention(t *testing.T) {
	s := &BatchSummary{}
	s.Add(MessageOutcome{MessageID: uuid.New(), Status: MessageStatusNeedsReview})
	s.Add(MessageOutcome{MessageID: uuid.New(), Status: MessageStatusNeedsReview})
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 2, s.NeedsReview)
	assert.False(t, s.NeedsAttention())

	s.Add(MessageOutcome{MessageID: uuid.New(), Status: MessageStatusError})
	assert.Equal(t, 1, s.Errored)
	assert.True(t, s.NeedsAttention())

	skipped := &BatchSummary{}
	skipped.Add(MessageOutcome{MessageID: uuid.New(), Status: MessageStatusPending, Skipped: true})
	assert.Equal(t, 0, skipped.Processed)
	assert.Equal(t, 1, skipped.Skipped)
	assert.True(t, skipped.NeedsAttention())

	assert.True(t, (&BatchSummary{Aborted: true}).NeedsAttention())
	assert.Len(t, s.Outcomes, 3)
}
