package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/kamilpajak/quorum/internal/provider"
)

// GoogleClient implements the Client interface for Google Gemini
type GoogleClient struct {
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewGoogleClient creates a new Google Gemini client from a profile
func NewGoogleClient(p provider.Profile) *GoogleClient {
	baseURL := p.Endpoint
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GoogleClient{
		apiKey:     p.Credential(),
		model:      p.Model,
		maxTokens:  p.MaxTokens,
		httpClient: httpClient(),
		baseURL:    baseURL,
		limiter:    newLimiter(),
	}
}

// Google API request/response types
type googleRequest struct {
	Contents          []googleContent        `json:"contents"`
	SystemInstruction *googleContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  googleGenerationConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type googleResponse struct {
	Candidates    []googleCandidate `json:"candidates"`
	UsageMetadata googleUsage       `json:"usageMetadata"`
}

type googleCandidate struct {
	Content googleContent `json:"content"`
}

type googleUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Complete sends a request to Google Gemini
func (c *GoogleClient) Complete(ctx context.Context, messages []Message) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	// Convert messages to Google format. Google uses "user" and "model"
	// (not "assistant"), and carries the system prompt separately.
	var system *googleContent
	contents := make([]googleContent, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = &googleContent{Parts: []googlePart{{Text: msg.Content}}}
			continue
		}
		role := msg.Role
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, googleContent{
			Role:  role,
			Parts: []googlePart{{Text: msg.Content}},
		})
	}

	reqBody := googleRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: googleGenerationConfig{
			Temperature:     0.1,
			MaxOutputTokens: c.maxTokens,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var googleResp googleResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(googleResp.Candidates) == 0 || len(googleResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	content := ""
	for _, p := range googleResp.Candidates[0].Content.Parts {
		content += p.Text
	}

	return &Response{
		Content:      content,
		InputTokens:  googleResp.UsageMetadata.PromptTokenCount,
		OutputTokens: googleResp.UsageMetadata.CandidatesTokenCount,
		Model:        c.model,
	}, nil
}

// Provider returns the provider name
func (c *GoogleClient) Provider() string {
	return provider.IDGoogle
}

// Model returns the model name
func (c *GoogleClient) Model() string {
	return c.model
}
