package embed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"promptforge/internal/fault"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
	defaultOllamaDim   = 768
)

// Ollama embeds prompt text against a local Ollama server. The API has
// no batch endpoint, so Embed issues one request per input.
type Ollama struct {
	BaseURL string
	Model   string
	DimVal  int
	Client  *http.Client
}

func NewOllama(baseURL, model string, dim int) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if dim <= 0 {
		dim = defaultOllamaDim
	}
	return &Ollama{BaseURL: baseURL, Model: model, DimVal: dim, Client: &http.Client{Timeout: 30 * time.Second}}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Dim() int { return o.DimVal }

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		var decoded ollamaResponse
		err := postJSON(ctx, o.Client, o.BaseURL+"/api/embeddings", nil, ollamaRequest{Model: o.Model, Prompt: text}, &decoded)
		if err != nil {
			return nil, fault.FromTransport("embed.ollama", fmt.Errorf("input %d: %w", i, err))
		}
		if len(decoded.Embedding) == 0 {
			return nil, fault.Invalidf("embed.ollama", fmt.Errorf("empty embedding for input %d", i))
		}
		vectors = append(vectors, decoded.Embedding)
	}
	return vectors, nil
}
