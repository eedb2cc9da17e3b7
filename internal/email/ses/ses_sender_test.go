package ses_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/config"
	"intake/internal/domain"
	"intake/internal/email/ses"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

func notifyConfig(recipients ...string) *config.NotifyConfig {
	return &config.NotifyConfig{
		FromAddress: "intake@example.com",
		FromName:    "Intake Pipeline",
		Recipients:  recipients,
	}
}

func sampleSummary() *domain.BatchSummary {
	return &domain.BatchSummary{
		StartedAt:   time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		Selected:    3,
		Processed:   2,
		NeedsReview: 1,
		Errored:     1,
		Skipped:     1,
		Outcomes: []domain.MessageOutcome{
			{MessageID: uuid.New(), Subject: "NF-e 1", Status: domain.MessageStatusNeedsReview},
			{MessageID: uuid.New(), Subject: "Boleto <março>", Status: domain.MessageStatusError, ErrorMessage: "attachment a.pdf: download failed"},
			{MessageID: uuid.New(), Subject: "Recibo", Skipped: true},
		},
	}
}

func TestSESSender_SendBatchReport(t *testing.T) {
	fake := &fakeSES{}
	sender := ses.NewSESSenderWithClient(fake, notifyConfig("ops@example.com", "fin@example.com"))

	err := sender.SendBatchReport(context.Background(), sampleSummary())

	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "Intake Pipeline <intake@example.com>", *in.FromEmailAddress)
	assert.Equal(t, []string{"ops@example.com", "fin@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "[Intake] Batch finished: 1 error(s), 1 skipped", *in.Content.Simple.Subject.Data)
	assert.Contains(t, *in.Content.Simple.Body.Text.Data, "attachment a.pdf: download failed")
	assert.Contains(t, *in.Content.Simple.Body.Html.Data, "Boleto &lt;março&gt;")
}

func TestSESSender_NoRecipients(t *testing.T) {
	fake := &fakeSES{}
	sender := ses.NewSESSenderWithClient(fake, notifyConfig())

	require.NoError(t, sender.SendBatchReport(context.Background(), sampleSummary()))
	assert.Empty(t, fake.inputs)
}

func TestSESSender_Error(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	sender := ses.NewSESSenderWithClient(fake, notifyConfig("ops@example.com"))

	err := sender.SendBatchReport(context.Background(), sampleSummary())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SES SendEmail: throttled")
}

func TestBuildReportText(t *testing.T) {
	s := sampleSummary()
	text := ses.BuildReportText(s)

	assert.Contains(t, text, "Selected:     3")
	assert.Contains(t, text, "Errors:       1")
	assert.Contains(t, text, "Recibo): skipped (claimed elsewhere)")
	assert.NotContains(t, text, "NF-e 1")
	assert.NotContains(t, text, "aborted")
}

func TestBuildSubjectAndText_Aborted(t *testing.T) {
	s := &domain.BatchSummary{Selected: 5, Processed: 1, Errored: 1, Aborted: true, AbortReason: "attachment store unavailable"}

	assert.Equal(t, "[Intake] Batch aborted after 1 of 5 messages", ses.BuildSubject(s))
	assert.Contains(t, ses.BuildReportText(s), "The batch was aborted: attachment store unavailable")
	assert.Contains(t, ses.BuildReportHTML(s), "attachment store unavailable")
}
