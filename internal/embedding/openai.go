package embedding

import (
	"context"
	"fmt"
	"net/http"
)

// OpenAIEmbedder uses any OpenAI-compatible embedding API.
type OpenAIEmbedder struct {
	url    string
	apiKey string
	model  string
	dims   int
	client *http.Client
}

type openaiEmbedRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an embedder using an OpenAI-compatible API.
// Defaults: api.openai.com, text-embedding-3-small, 1536 dims. A non-default
// width is requested from the API explicitly.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dims == 0 {
		dims = 1536
	}
	return &OpenAIEmbedder{
		url:    baseURL + "/embeddings",
		apiKey: apiKey,
		model:  model,
		dims:   dims,
		client: &http.Client{Timeout: requestTimeout},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	req := openaiEmbedRequest{Input: text, Model: e.model}
	if e.dims != 1536 {
		req.Dimensions = e.dims
	}
	var out openaiEmbedResponse
	if err := postJSON(ctx, e.client, "openai", e.url, e.apiKey, req, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embedding")
	}
	return checkDims("openai", out.Data[0].Embedding, e.dims)
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }
