package stream

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"spamguard_server/adapter/in/worker"
)

type ConsumerConfig struct {
	Name  string
	Block time.Duration
	Count int64
}

// Consumer moves stream deliveries into the worker pool. A delivery is acked
// once the pool accepts it; the pool's retry and DLQ handling take over from
// there.
type Consumer struct {
	stream *RedisStream
	pool   *worker.Pool
	cfg    ConsumerConfig
	log    zerolog.Logger
}

func NewConsumer(stream *RedisStream, pool *worker.Pool, cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	if cfg.Block == 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Count == 0 {
		cfg.Count = 10
	}
	return &Consumer{
		stream: stream,
		pool:   pool,
		cfg:    cfg,
		log:    log.With().Str("component", "consumer").Logger(),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	streams := []string{StreamRescore, StreamTrain}
	for _, s := range streams {
		if err := c.stream.CreateGroup(ctx, s); err != nil {
			return err
		}
	}

	for _, s := range streams {
		go c.consume(ctx, s)
	}
	c.log.Info().Str("consumer", c.cfg.Name).Msg("stream consumer started")
	return nil
}

func (c *Consumer) consume(ctx context.Context, stream string) {
	c.stream.Consume(ctx, stream, c.cfg.Name, c.cfg.Block, c.cfg.Count, func(id string, data []byte) error {
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			// Malformed entries never become parseable; ack them away.
			c.log.Error().Err(err).Str("stream", stream).Str("id", id).Msg("dropping malformed job")
			return nil
		}

		msg := &worker.Message{
			ID:        job.ID,
			Type:      job.Type,
			Payload:   job.Payload,
			CreatedAt: job.CreatedAt,
		}
		if !c.pool.Submit(msg) {
			return errors.New("worker pool rejected job")
		}
		return nil
	})
}
