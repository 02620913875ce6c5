// Package stream is the durable job queue: Redis Streams with consumer
// groups, one stream per job family.
package stream

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	StreamRescore = "spam:rescore"
	StreamTrain   = "spam:train"
)

type RedisStream struct {
	client *redis.Client
	group  string
	log    zerolog.Logger
}

func NewRedisStream(client *redis.Client, group string, log zerolog.Logger) *RedisStream {
	return &RedisStream{
		client: client,
		group:  group,
		log:    log.With().Str("component", "stream").Logger(),
	}
}

func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": jsonData},
	}).Result()
}

// Consume reads the stream as a group member and acknowledges every delivery
// the handler accepts. Handler errors leave the entry pending for redelivery.
func (s *RedisStream) Consume(ctx context.Context, stream, consumer string, block time.Duration, count int64, handler func(id string, data []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    count,
			Block:    block,
		}).Result()
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				s.log.Error().Err(err).Str("stream", stream).Msg("stream read failed")
				time.Sleep(time.Second)
			}
			continue
		}

		for _, st := range streams {
			for _, msg := range st.Messages {
				data, ok := msg.Values["data"].(string)
				if !ok {
					s.log.Warn().Str("stream", st.Stream).Str("id", msg.ID).Msg("entry without data field, acking")
					s.client.XAck(ctx, st.Stream, s.group, msg.ID)
					continue
				}

				if err := handler(msg.ID, []byte(data)); err != nil {
					s.log.Error().Err(err).Str("stream", st.Stream).Str("id", msg.ID).Msg("handler rejected delivery")
					continue
				}
				s.client.XAck(ctx, st.Stream, s.group, msg.ID)
			}
		}
	}
}

func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}
