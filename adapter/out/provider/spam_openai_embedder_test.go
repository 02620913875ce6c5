package provider

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

func TestNewOpenAIEmbedder_ModelSelection(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  openai.EmbeddingModel
	}{
		{"empty defaults to small-3", "", openai.SmallEmbedding3},
		{"explicit model kept", "text-embedding-3-large", openai.LargeEmbedding3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewOpenAIEmbedder("test-key", tt.model, zerolog.Nop())
			if e.model != tt.want {
				t.Errorf("model = %q, want %q", e.model, tt.want)
			}
		})
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder("test-key", "", zerolog.Nop())

	out, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed(nil) error = %v", err)
	}
	if out != nil {
		t.Errorf("Embed(nil) = %v, want nil", out)
	}
}
