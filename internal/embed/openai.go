package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"promptforge/internal/fault"
)

const (
	openAIEmbeddingsURL = "https://api.openai.com/v1/embeddings"
	defaultOpenAIModel  = "text-embedding-3-small"
	defaultOpenAIDim    = 1536
)

// OpenAI sends the whole batch in a single embeddings request.
type OpenAI struct {
	APIKey string
	Model  string
	DimVal int
	Client *http.Client
}

func NewOpenAI(apiKey, model string, dim int) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	if dim <= 0 {
		dim = defaultOpenAIDim
	}
	return &OpenAI{APIKey: apiKey, Model: model, DimVal: dim, Client: &http.Client{Timeout: 30 * time.Second}}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Dim() int { return o.DimVal }

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if o.APIKey == "" {
		return nil, fault.Invalidf("embed.openai", errors.New("api key not configured"))
	}
	headers := map[string]string{"Authorization": "Bearer " + o.APIKey}
	var decoded openAIResponse
	if err := postJSON(ctx, o.Client, openAIEmbeddingsURL, headers, openAIRequest{Model: o.Model, Input: texts}, &decoded); err != nil {
		return nil, fault.FromTransport("embed.openai", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fault.Invalidf("embed.openai", fmt.Errorf("got %d embeddings for %d inputs", len(decoded.Data), len(texts)))
	}
	vectors := make([][]float32, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		vectors = append(vectors, item.Embedding)
	}
	return vectors, nil
}
