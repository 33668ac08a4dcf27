// Package imagegen calls the image generation service used to decorate
// receipts. It is strictly best effort: the settlement pipeline treats every
// failure here as non-fatal.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowmint/flowpay/logger"
)

const (
	defaultBaseURL = "https://api.stability.ai"
	generationPath = "/v1/generation/stable-diffusion-xl-1024-v1-0/text-to-image"
)

// StabilityClient generates product artwork from a text prompt.
type StabilityClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     logger.Logger
}

// NewStabilityClient builds a client. The timeout bounds the whole
// generation call; image generation is slow, so give it more headroom than
// chain queries get.
func NewStabilityClient(apiKey string, timeout time.Duration, log logger.Logger) *StabilityClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &StabilityClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type generationRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    int          `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type generationResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

// Generate produces one image for the product and returns it as a data URL.
func (c *StabilityClient) Generate(ctx context.Context, productName string) (string, error) {
	prompt := fmt.Sprintf("A futuristic product shot of %s, dark moody lighting, high detail", productName)

	body, err := json.Marshal(generationRequest{
		TextPrompts: []textPrompt{{Text: prompt, Weight: 1}},
		CfgScale:    7,
		Height:      1024,
		Width:       1024,
		Samples:     1,
		Steps:       30,
	})
	if err != nil {
		return "", fmt.Errorf("encoding generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generationPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("image generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("image generation returned %s: %s", resp.Status, msg)
	}

	var result generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding generation response: %w", err)
	}
	if len(result.Artifacts) == 0 {
		return "", fmt.Errorf("image generation returned no artifacts")
	}

	c.log.Info("image generated", map[string]any{"product": productName})
	return "data:image/png;base64," + result.Artifacts[0].Base64, nil
}
