package extraction_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"intake/internal/domain"
	"intake/internal/extraction"
)

func TestExternalServiceError(t *testing.T) {
	withStatus := extraction.NewExternalServiceError("gemini", 500, []byte("  internal  "), nil)
	assert.Equal(t, "gemini API error (status 500): internal", withStatus.Error())

	transport := extraction.NewExternalServiceError("gemini", 0, nil, context.DeadlineExceeded)
	assert.Contains(t, transport.Error(), "gemini request failed")
	assert.True(t, errors.Is(transport, context.DeadlineExceeded))
}

func TestEmptyResponseError_Message(t *testing.T) {
	assert.Equal(t, "empty response from vision model", (&extraction.EmptyResponseError{}).Error())

	err := &extraction.EmptyResponseError{FinishReason: "MAX_TOKENS", BlockReason: "SAFETY", SafetyCategories: []string{"HARM_CATEGORY_HARASSMENT"}}
	assert.Equal(t, "empty response from vision model (finish reason MAX_TOKENS; blocked: SAFETY; safety: HARM_CATEGORY_HARASSMENT)", err.Error())
}

func TestUnsupportedAttachmentError_IsSentinel(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", &extraction.UnsupportedAttachmentError{Name: "a.zip", MimeType: "application/zip"})

	assert.True(t, errors.Is(err, domain.ErrUnsupportedAttachmentType))
	assert.False(t, errors.Is(err, domain.ErrAttachmentDownloadFailed))
}

func TestTruncate_RuneSafe(t *testing.T) {
	assert.Equal(t, "ação", extraction.Truncate("ação", 10))
	assert.Equal(t, "aç", extraction.Truncate("ação", 2))
}
