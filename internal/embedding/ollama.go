package embedding

import (
	"context"
	"net/http"
	"os"
)

// OllamaEmbedder uses a local Ollama instance for embeddings.
type OllamaEmbedder struct {
	url    string
	model  string
	dims   int
	client *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an embedder using Ollama's API. The base URL
// falls back to $OLLAMA_HOST, then localhost. Model defaults to
// nomic-embed-text (768 dims); all-minilm is 384.
func NewOllamaEmbedder(baseURL, model string, dims int) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if dims == 0 {
		dims = 768
		if model == "all-minilm" {
			dims = 384
		}
	}
	return &OllamaEmbedder{
		url:    baseURL + "/api/embeddings",
		model:  model,
		dims:   dims,
		client: &http.Client{Timeout: requestTimeout},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	var out ollamaResponse
	if err := postJSON(ctx, e.client, "ollama", e.url, "", ollamaRequest{Model: e.model, Prompt: text}, &out); err != nil {
		return nil, err
	}
	return checkDims("ollama", out.Embedding, e.dims)
}

func (e *OllamaEmbedder) Dims() int { return e.dims }
