package gemini_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"intake/internal/config"
	"intake/internal/domain"
	"intake/internal/extraction"
	"intake/internal/extraction/gemini"
	"intake/internal/port"
)

func newTestClient(t *testing.T, serverURL string) *gemini.Client {
	cfg := &config.VisionConfig{
		APIKey:          "test-gemini-key",
		Model:           "gemini-2.0-flash",
		TimeoutSecs:     5,
		Temperature:     0.1,
		MaxOutputTokens: 2048,
	}
	return gemini.NewClientWithEndpoint(cfg, serverURL, zaptest.NewLogger(t))
}

func successResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
}

func TestClient_Extract_Image_Success(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	modelText := "```json\n{\"supplier_name\":\"Padaria Central\",\"amount\":42.5,\"document_date\":\"2024-03-10\",\"payment_method\":\"pix\",\"confidence\":0.9}\n```"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-gemini-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		contents := reqBody["contents"].([]interface{})
		require.Len(t, contents, 1)
		parts := contents[0].(map[string]interface{})["parts"].([]interface{})
		require.Len(t, parts, 2)

		textPart := parts[0].(map[string]interface{})
		assert.Contains(t, textPart["text"], "image")

		inline := parts[1].(map[string]interface{})["inline_data"].(map[string]interface{})
		assert.Equal(t, "image/jpeg", inline["mime_type"])
		assert.Equal(t, base64.StdEncoding.EncodeToString(payload), inline["data"])

		genConfig := reqBody["generationConfig"].(map[string]interface{})
		assert.InDelta(t, 0.1, genConfig["temperature"], 1e-9)
		assert.Equal(t, float64(2048), genConfig["maxOutputTokens"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(successResponse(modelText))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := c.Extract(context.Background(), port.VisionInput{
		Data:     payload,
		Kind:     port.MediaImage,
		MimeType: "image/jpeg",
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.SupplierName)
	assert.Equal(t, "Padaria Central", *result.SupplierName)
	require.NotNil(t, result.Amount)
	assert.Equal(t, "42.5", result.Amount.String())
	require.NotNil(t, result.DocumentDate)
	assert.Equal(t, "2024-03-10", *result.DocumentDate)
	require.NotNil(t, result.PaymentMethod)
	assert.Equal(t, domain.PaymentPix, *result.PaymentMethod)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.Equal(t, modelText, result.RawResponse)
}

func TestClient_Extract_PDF_AlwaysUsesPDFMimeType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		parts := reqBody["contents"].([]interface{})[0].(map[string]interface{})["parts"].([]interface{})
		assert.Contains(t, parts[0].(map[string]interface{})["text"], "PDF")
		inline := parts[1].(map[string]interface{})["inline_data"].(map[string]interface{})
		assert.Equal(t, "application/pdf", inline["mime_type"])

		_ = json.NewEncoder(w).Encode(successResponse(`{"confidence":0.8,"invoice_number":12345}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := c.Extract(context.Background(), port.VisionInput{
		Data:     []byte("%PDF-1.4 test"),
		Kind:     port.MediaPDF,
		MimeType: "application/x-pdf",
	})

	require.NoError(t, err)
	require.NotNil(t, result.InvoiceNumber)
	assert.Equal(t, "12345", *result.InvoiceNumber)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
}

func TestClient_Extract_SniffsGenericImageType(t *testing.T) {
	// PNG signature
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		parts := reqBody["contents"].([]interface{})[0].(map[string]interface{})["parts"].([]interface{})
		inline := parts[1].(map[string]interface{})["inline_data"].(map[string]interface{})
		assert.Equal(t, "image/png", inline["mime_type"])

		_ = json.NewEncoder(w).Encode(successResponse(`{"confidence":0.7}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Extract(context.Background(), port.VisionInput{
		Data:     png,
		Kind:     port.MediaImage,
		MimeType: "image/*",
	})
	require.NoError(t, err)
}

func TestClient_Extract_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := c.Extract(context.Background(), port.VisionInput{Data: []byte("x"), Kind: port.MediaImage, MimeType: "image/png"})

	require.Error(t, err)
	assert.Nil(t, result)
	var svcErr *extraction.ExternalServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusTooManyRequests, svcErr.StatusCode)
	assert.Equal(t, "gemini", svcErr.Provider)
	assert.Contains(t, svcErr.Body, "Resource has been exhausted")
}

func TestClient_Extract_LongErrorBodyTruncated(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(long)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Extract(context.Background(), port.VisionInput{Data: []byte("x"), Kind: port.MediaPDF})

	var svcErr *extraction.ExternalServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Len(t, svcErr.Body, 200)
}

func TestClient_Extract_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Extract(ctx, port.VisionInput{Data: []byte("x"), Kind: port.MediaImage, MimeType: "image/png"})

	var svcErr *extraction.ExternalServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, 0, svcErr.StatusCode)
}

func TestClient_Extract_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY",
				"safetyRatings": [{"category": "HARM_CATEGORY_DANGEROUS_CONTENT", "probability": "HIGH", "blocked": true}]}],
			"promptFeedback": {"blockReason": "SAFETY"}
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Extract(context.Background(), port.VisionInput{Data: []byte("x"), Kind: port.MediaImage, MimeType: "image/png"})

	var emptyErr *extraction.EmptyResponseError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, "SAFETY", emptyErr.FinishReason)
	assert.Equal(t, "SAFETY", emptyErr.BlockReason)
	assert.Equal(t, []string{"HARM_CATEGORY_DANGEROUS_CONTENT"}, emptyErr.SafetyCategories)
}

func TestClient_Extract_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Extract(context.Background(), port.VisionInput{Data: []byte("x"), Kind: port.MediaImage, MimeType: "image/png"})

	var emptyErr *extraction.EmptyResponseError
	assert.True(t, errors.As(err, &emptyErr))
}

func TestClient_Extract_MalformedModelOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(successResponse("Sorry, I cannot read this receipt."))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Extract(context.Background(), port.VisionInput{Data: []byte("x"), Kind: port.MediaImage, MimeType: "image/png"})

	var malformed *extraction.MalformedExtractionError
	require.True(t, errors.As(err, &malformed))
	assert.Contains(t, malformed.Excerpt, "Sorry")
}
