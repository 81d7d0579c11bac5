package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"
)

const embeddingDimension = 256

// Gemini holds configuration for the Gemini embedding client
type Gemini struct {
	projectID string
	location  string
}

// Flags returns CLI flags for Gemini configuration
func (g *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini embeddings",
			Sources:     cli.EnvVars("ESR_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini embeddings",
			Value:       "us-central1",
			Sources:     cli.EnvVars("ESR_GEMINI_LOCATION"),
			Destination: &g.location,
		},
	}
}

// LogAttrs returns log attributes for the Gemini configuration
func (g *Gemini) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
	}
}

// Configure creates an embedder backed by Gemini. Returns nil when no
// project is configured; semantic search then degrades to substring
// matching.
func (g *Gemini) Configure(ctx context.Context) (*Embedder, error) {
	if g.projectID == "" {
		return nil, nil
	}

	client, err := gemini.New(ctx, g.projectID, g.location)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}

	return &Embedder{client: client}, nil
}

// Embedder adapts a gollem LLM client to the single-text embedding call
// the vector backend expects
type Embedder struct {
	client gollem.LLMClient
}

// Embed generates an embedding vector for one text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.client.GenerateEmbedding(ctx, embeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(vectors) == 0 {
		return nil, goerr.New("embedding response was empty")
	}

	result := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		result[i] = float32(v)
	}
	return result, nil
}
