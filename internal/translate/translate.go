package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/vasiliy-maslov/boutique-api/internal/config"
)

const sourceLocale = "en"

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	ErrUpstream = errors.New("translation service failed")
)

// Client talks to a LibreTranslate compatible HTTP API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewClient(cfg config.TranslateConfig) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.URL, "/") + "/translate",
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	payload, err := json.Marshal(translateRequest{
		Q:      text,
		Source: sourceLocale,
		Target: target,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("translate: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("translate: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	var out translateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: invalid response (status %d): %v", ErrUpstream, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, out.Error)
	}

	return out.TranslatedText, nil
}

// Passthrough returns every text unchanged. Used when no translation service
// is configured.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}
