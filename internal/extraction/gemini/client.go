package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"intake/internal/config"
	"intake/internal/domain"
	"intake/internal/extraction"
	"intake/internal/port"
)

const (
	apiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	providerName = "gemini"
)

// Client implements port.VisionExtractor using Google's Gemini API.
type Client struct {
	apiKey          string
	model           string
	endpoint        string
	temperature     float64
	maxOutputTokens int
	client          *http.Client
	logger          *zap.Logger
}

// NewClient creates a Gemini-based vision extractor.
func NewClient(cfg *config.VisionConfig, logger *zap.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:          cfg.APIKey,
		model:           model,
		endpoint:        endpoint,
		temperature:     cfg.Temperature,
		maxOutputTokens: maxTokens,
		client:          &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

// NewClientWithEndpoint creates a client with a custom endpoint (for testing).
func NewClientWithEndpoint(cfg *config.VisionConfig, endpoint string, logger *zap.Logger) *Client {
	c := NewClient(cfg, logger)
	c.endpoint = endpoint
	return c
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type safetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Blocked     bool   `json:"blocked"`
}

// generateResponse models the parts of the Gemini response we read.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason  string         `json:"finishReason"`
		SafetyRatings []safetyRating `json:"safetyRatings"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason   string         `json:"blockReason"`
		SafetyRatings []safetyRating `json:"safetyRatings"`
	} `json:"promptFeedback"`
}

// Extract submits one image or PDF with the matching prompt and parses the reply.
func (c *Client) Extract(ctx context.Context, input port.VisionInput) (*domain.ExtractionResult, error) {
	start := time.Now()
	prompt := extraction.BuildExtractionPrompt(input.Kind)
	mimeType := resolveMimeType(input)

	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(input.Data),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, extraction.NewExternalServiceError(providerName, 0, nil, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, extraction.NewExternalServiceError(providerName, 0, nil, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("gemini.Extract: API error",
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(input.Kind)),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return nil, extraction.NewExternalServiceError(providerName, resp.StatusCode, respBody, nil)
	}

	text, err := responseText(respBody)
	if err != nil {
		return nil, err
	}

	result, err := extraction.ParseExtractionText(text)
	if err != nil {
		c.logger.Warn("gemini.Extract: unparseable model output",
			zap.Error(err),
			zap.Int("text_len", len(text)),
		)
		return nil, err
	}

	c.logger.Info("gemini.Extract: extraction complete",
		zap.String("model", c.model),
		zap.String("kind", string(input.Kind)),
		zap.String("mime_type", mimeType),
		zap.Int("bytes", len(input.Data)),
		zap.Float64("confidence", result.Confidence),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

// responseText returns candidates[0].content.parts[0].text, or an EmptyResponseError
// with whatever stop and safety metadata the provider attached.
func responseText(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", extraction.NewExternalServiceError(providerName, http.StatusOK, body, fmt.Errorf("unmarshaling response: %w", err))
	}

	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		if text := resp.Candidates[0].Content.Parts[0].Text; strings.TrimSpace(text) != "" {
			return text, nil
		}
	}

	empty := &extraction.EmptyResponseError{}
	var ratings []safetyRating
	if len(resp.Candidates) > 0 {
		empty.FinishReason = resp.Candidates[0].FinishReason
		ratings = append(ratings, resp.Candidates[0].SafetyRatings...)
	}
	if resp.PromptFeedback != nil {
		empty.BlockReason = resp.PromptFeedback.BlockReason
		ratings = append(ratings, resp.PromptFeedback.SafetyRatings...)
	}
	for _, r := range ratings {
		if r.Blocked {
			empty.SafetyCategories = append(empty.SafetyCategories, r.Category)
		}
	}
	return "", empty
}

// resolveMimeType picks the inline_data MIME type. PDFs are always application/pdf;
// images use the declared type when concrete and fall back to content sniffing.
func resolveMimeType(input port.VisionInput) string {
	if input.Kind == port.MediaPDF {
		return "application/pdf"
	}
	declared := strings.ToLower(strings.TrimSpace(input.MimeType))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	switch declared {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/jpeg", "image/png", "image/webp", "image/heic", "image/heif":
		return declared
	}
	detected := mimetype.Detect(input.Data)
	if strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	return "image/jpeg"
}
