package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/nstogner/cortex/pkg/model"
)

// Embedder implements model.Embedder with the Gemini embedding API.
type Embedder struct {
	client   *genai.Client
	model    string
	taskType string
}

var _ model.Embedder = (*Embedder)(nil)

// Embedder returns an embedder sharing the provider's client. An empty model
// selects DefaultEmbeddingModel.
func (p *Provider) Embedder(modelName string) *Embedder {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}
	return &Embedder{client: p.client, model: modelName, taskType: "SEMANTIC_SIMILARITY"}
}

// Embed generates an embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{TaskType: e.taskType},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}
