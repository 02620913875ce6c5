// Package provider holds outbound adapters for external model capabilities.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"spamguard_server/core/service/pipeline"
)

const embedTimeout = 30 * time.Second

// OpenAIEmbedder produces dense text embeddings through the OpenAI API. Calls
// run behind a circuit breaker so a degraded upstream fails fast instead of
// stalling every scoring job.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

func NewOpenAIEmbedder(apiKey, model string, log zerolog.Logger) *OpenAIEmbedder {
	componentLog := log.With().Str("component", "openai_embedder").Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai-embeddings",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			componentLog.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("embedding circuit breaker state changed")
		},
	})

	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	return &OpenAIEmbedder{
		client:  openai.NewClient(apiKey),
		model:   openai.EmbeddingModel(model),
		breaker: breaker,
		log:     componentLog,
	}
}

// Embed returns one embedding per input text, in order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result, err := e.breaker.Execute(func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		defer cancel()

		resp, err := e.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
			Input: texts,
			Model: e.model,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("embedding response has %d rows for %d inputs", len(resp.Data), len(texts))
		}

		out := make([][]float64, len(resp.Data))
		for _, item := range resp.Data {
			vec := make([]float64, len(item.Embedding))
			for j, v := range item.Embedding {
				vec[j] = float64(v)
			}
			out[item.Index] = vec
		}
		return out, nil
	})
	if err != nil {
		e.log.Error().Err(err).Int("texts", len(texts)).Msg("embedding request failed")
		return nil, err
	}
	return result.([][]float64), nil
}

// EmbedFunc adapts the embedder to the pipeline's injected capability. The
// pipeline has no context of its own, so calls run under a background context
// bounded by the per-request timeout.
func (e *OpenAIEmbedder) EmbedFunc() pipeline.EmbedFunc {
	return func(texts []string) ([][]float64, error) {
		return e.Embed(context.Background(), texts)
	}
}
