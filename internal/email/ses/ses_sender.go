package ses

import (
	"context"
	"fmt"
	"html"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"intake/internal/config"
	"intake/internal/domain"
	"intake/internal/port"
)

// EmailAPI is the subset of the SES v2 client the sender uses.
type EmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesSender struct {
	client      EmailAPI
	fromAddress string
	fromName    string
	recipients  []string
}

// NewSESSender creates a new SES-backed ReportSender.
func NewSESSender(ctx context.Context, cfg *config.NotifyConfig) (port.ReportSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return NewSESSenderWithClient(sesv2.NewFromConfig(awsCfg), cfg), nil
}

// NewSESSenderWithClient creates a ReportSender over an existing SES client.
func NewSESSenderWithClient(client EmailAPI, cfg *config.NotifyConfig) port.ReportSender {
	return &sesSender{
		client:      client,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		recipients:  cfg.Recipients,
	}
}

func (s *sesSender) SendBatchReport(ctx context.Context, summary *domain.BatchSummary) error {
	if len(s.recipients) == 0 {
		return nil
	}

	subject := BuildSubject(summary)
	htmlBody := BuildReportHTML(summary)
	textBody := BuildReportText(summary)
	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

// BuildSubject summarizes the run in one line.
func BuildSubject(s *domain.BatchSummary) string {
	if s.Aborted {
		return fmt.Sprintf("[Intake] Batch aborted after %d of %d messages", s.Processed, s.Selected)
	}
	return fmt.Sprintf("[Intake] Batch finished: %d error(s), %d skipped", s.Errored, s.Skipped)
}

// BuildReportText renders the plain-text body.
func BuildReportText(s *domain.BatchSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intake batch started %s\n\n", s.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Selected:     %d\n", s.Selected)
	fmt.Fprintf(&b, "Processed:    %d\n", s.Processed)
	fmt.Fprintf(&b, "Needs review: %d\n", s.NeedsReview)
	fmt.Fprintf(&b, "Errors:       %d\n", s.Errored)
	fmt.Fprintf(&b, "Skipped:      %d\n", s.Skipped)
	if s.Aborted {
		fmt.Fprintf(&b, "\nThe batch was aborted: %s\n", s.AbortReason)
	}

	var problems []domain.MessageOutcome
	for _, o := range s.Outcomes {
		if o.Skipped || o.Status == domain.MessageStatusError {
			problems = append(problems, o)
		}
	}
	if len(problems) > 0 {
		b.WriteString("\nMessages needing attention:\n")
		for _, o := range problems {
			fmt.Fprintf(&b, "- %s (%s): %s\n", o.MessageID, o.Subject, outcomeLabel(o))
		}
	}
	return b.String()
}

// BuildReportHTML renders the HTML body.
func BuildReportHTML(s *domain.BatchSummary) string {
	var rows strings.Builder
	for _, o := range s.Outcomes {
		if !o.Skipped && o.Status != domain.MessageStatusError {
			continue
		}
		fmt.Fprintf(&rows, `    <tr><td style="padding: 4px 8px;">%s</td><td style="padding: 4px 8px;">%s</td><td style="padding: 4px 8px; color: #B91C1C;">%s</td></tr>
`, o.MessageID, html.EscapeString(o.Subject), html.EscapeString(outcomeLabel(o)))
	}

	abort := ""
	if s.Aborted {
		abort = fmt.Sprintf(`  <p style="color: #B91C1C;"><strong>The batch was aborted:</strong> %s</p>
`, html.EscapeString(s.AbortReason))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Intake batch report</h2>
  <p>Started %s</p>
%s  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 8px;">Selected</td><td>%d</td></tr>
    <tr><td style="padding: 4px 8px;">Processed</td><td>%d</td></tr>
    <tr><td style="padding: 4px 8px;">Needs review</td><td>%d</td></tr>
    <tr><td style="padding: 4px 8px;">Errors</td><td>%d</td></tr>
    <tr><td style="padding: 4px 8px;">Skipped</td><td>%d</td></tr>
  </table>
  <h3 style="color: #333;">Messages needing attention</h3>
  <table style="border-collapse: collapse; font-size: 13px;">
%s  </table>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Intake Pipeline</p>
</body>
</html>`,
		s.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"), abort,
		s.Selected, s.Processed, s.NeedsReview, s.Errored, s.Skipped, rows.String())
}

func outcomeLabel(o domain.MessageOutcome) string {
	if o.Skipped {
		return "skipped (claimed elsewhere)"
	}
	if o.ErrorMessage == "" {
		return "error"
	}
	return o.ErrorMessage
}
