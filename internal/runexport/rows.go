package runexport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"intake/internal/domain"
)

// columns defines the header row shared by the CSV and XLSX exports.
var columns = []string{
	"Message ID",
	"Subject",
	"Status",
	"Confidence",
	"Supplier",
	"Tax ID",
	"Amount",
	"Document Date",
	"Invoice Number",
	"Payment Method",
	"Category",
	"Attachment",
	"Extractor",
	"Notes",
}

// Columns returns a copy of the export header row.
func Columns() []string {
	return append([]string(nil), columns...)
}

// outcomeToRow converts one message outcome to a row. Skipped messages carry
// only identity and notes; extraction columns stay empty when there is no result.
func outcomeToRow(o *domain.MessageOutcome) []string {
	row := make([]string, len(columns))

	row[0] = o.MessageID.String()
	row[1] = o.Subject
	row[2] = string(o.Status)
	row[13] = o.ErrorMessage
	if o.Skipped {
		row[2] = "skipped"
		return row
	}

	r := o.Result
	if r == nil {
		return row
	}
	row[3] = formatConfidence(r.Confidence)
	row[4] = deref(r.SupplierName)
	row[5] = deref(r.TaxID)
	if r.Amount != nil {
		row[6] = r.Amount.StringFixed(2)
	}
	row[7] = deref(r.DocumentDate)
	row[8] = deref(r.InvoiceNumber)
	if r.PaymentMethod != nil {
		row[9] = string(*r.PaymentMethod)
	}
	row[10] = deref(r.SuggestedCategory)
	row[11] = r.SourceAttachment
	row[12] = string(r.Extractor)

	return row
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns intake_run_<YYYY-MM-DD_HHMMSS>.<ext> for a run started at.
func BuildFilename(startedAt time.Time, ext string) string {
	stamp := SanitizeFilename(startedAt.UTC().Format("2006-01-02_150405"))
	return fmt.Sprintf("intake_run_%s.%s", stamp, strings.TrimPrefix(ext, "."))
}
