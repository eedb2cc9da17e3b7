package extraction

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"intake/internal/domain"
)

// ExternalServiceError indicates the vision provider could not be reached or
// answered with a non-2xx status. StatusCode is 0 for transport failures.
type ExternalServiceError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalServiceError keeps at most 200 characters of the response body.
func NewExternalServiceError(provider string, status int, body []byte, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Provider:   provider,
		StatusCode: status,
		Body:       Truncate(strings.TrimSpace(string(body)), 200),
		Err:        err,
	}
}

// EmptyResponseError indicates the provider answered without any text output,
// usually because generation was stopped or blocked.
type EmptyResponseError struct {
	FinishReason     string
	BlockReason      string
	SafetyCategories []string
}

func (e *EmptyResponseError) Error() string {
	var details []string
	if e.FinishReason != "" {
		details = append(details, "finish reason "+e.FinishReason)
	}
	if e.BlockReason != "" {
		details = append(details, "blocked: "+e.BlockReason)
	}
	if len(e.SafetyCategories) > 0 {
		details = append(details, "safety: "+strings.Join(e.SafetyCategories, ", "))
	}
	if len(details) == 0 {
		return "empty response from vision model"
	}
	return "empty response from vision model (" + strings.Join(details, "; ") + ")"
}

// MalformedExtractionError indicates the model text was not a valid extraction payload.
type MalformedExtractionError struct {
	Excerpt string
	Err     error
}

func (e *MalformedExtractionError) Error() string {
	return fmt.Sprintf("malformed extraction: %v (excerpt: %q)", e.Err, e.Excerpt)
}

func (e *MalformedExtractionError) Unwrap() error {
	return e.Err
}

// UnsupportedAttachmentError is returned for attachments no extractor accepts.
// It is informational, not a failure.
type UnsupportedAttachmentError struct {
	Name     string
	MimeType string
}

func (e *UnsupportedAttachmentError) Error() string {
	return fmt.Sprintf("unsupported attachment type %q for %s", e.MimeType, e.Name)
}

func (e *UnsupportedAttachmentError) Is(target error) bool {
	return target == domain.ErrUnsupportedAttachmentType
}

// Truncate shortens s to at most maxLen runes.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen])
}
