package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"showfinder/metrics"
)

const defaultEndpoint = "https://api.ocr.space/parse/image"

// WebClient recovers text through a hosted OCR API, for deployments
// without a local tesseract install.
type WebClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// WebOption configures a WebClient.
type WebOption func(*WebClient)

// WithEndpoint sets a custom API endpoint (for testing).
func WithEndpoint(url string) WebOption {
	return func(c *WebClient) {
		c.endpoint = url
	}
}

// NewWebClient creates an API-backed engine.
func NewWebClient(apiKey string, opts ...WebOption) *WebClient {
	c := &WebClient{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecoverText submits the image URL to the OCR API and returns the parsed
// text.
func (c *WebClient) RecoverText(ctx context.Context, imageRef string) (string, error) {
	text, err := c.parse(ctx, imageRef)
	if err != nil {
		metrics.TextRecoveries.WithLabelValues("web", "error").Inc()
		return "", err
	}
	metrics.TextRecoveries.WithLabelValues("web", "ok").Inc()
	return text, nil
}

func (c *WebClient) parse(ctx context.Context, imageRef string) (string, error) {
	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("url", imageRef)
	form.Set("language", "eng")
	form.Set("scale", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var body parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if body.IsErroredOnProcessing {
		return "", fmt.Errorf("ocr service error: %s", body.ErrorMessage)
	}
	if len(body.ParsedResults) == 0 {
		return "", fmt.Errorf("no parsed results")
	}
	return strings.TrimSpace(body.ParsedResults[0].ParsedText), nil
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	// the service reports this as a string or a list depending on the
	// failure, so keep the raw form
	ErrorMessage json.RawMessage `json:"ErrorMessage"`
}
