// Package local is the local HTTP LLM provider: POST /api/generate
// against an Ollama-shaped server, per spec §6's "local HTTP
// /api/generate" reference provider. Grounded on embedder/remote's
// request/response shape, carried over from text embeddings to text
// generation.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Summarizer calls a local Ollama-shaped /api/generate endpoint.
type Summarizer struct {
	baseURL string
	model   string
	client  *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// New returns a Summarizer at baseURL for model. An empty baseURL
// defaults to the standard local Ollama port.
func New(baseURL, model string) *Summarizer {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Summarizer{baseURL: baseURL, model: model, client: &http.Client{Timeout: 60 * time.Second}}
}

// Generate implements the engram.Summarizer contract.
func (s *Summarizer) Generate(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: s.model, Prompt: prompt, System: system, Stream: false})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("local generate error %d: %s", resp.StatusCode, string(b))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode local generate response: %w", err)
	}
	return result.Response, nil
}
