package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/time/rate"
)

// EmbeddingDimensions is the output size of the embedding model. The
// database schema's vector column must match.
const EmbeddingDimensions = 768

// Embedder produces a vector representation of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GoogleEmbedder implements Embedder against the Gemini embedContent
// endpoint.
type GoogleEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogleEmbedder creates an embedder using GOOGLE_API_KEY. baseURL
// overrides the default endpoint when non-empty (used by tests).
func NewGoogleEmbedder(baseURL string) (*GoogleEmbedder, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY environment variable required")
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GoogleEmbedder{
		apiKey:     apiKey,
		model:      "text-embedding-004",
		baseURL:    baseURL,
		httpClient: httpClient(),
		limiter:    newLimiter(),
	}, nil
}

type embedRequest struct {
	Content googleContent `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for the given text.
func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := embedRequest{Content: googleContent{Parts: []googlePart{{Text: text}}}}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", e.baseURL, e.model, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
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

	var embedResp embedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(embedResp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding from model")
	}

	return embedResp.Embedding.Values, nil
}
