package event

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LogSink writes each event as one structured log line.
type LogSink struct {
	Log *zap.SugaredLogger
}

func (s LogSink) Emit(_ context.Context, e Event) {
	s.Log.Infow("forum event",
		"event_id", e.ID.String(),
		"kind", string(e.Kind),
		"site_id", e.SiteID,
		"data", e.Data,
	)
}

// RedisPublisher publishes JSON envelopes to `<prefix><kind>` so
// subscribers can pattern-subscribe to `<prefix>*`.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

// NewRedisPublisher returns a publisher on client.
func NewRedisPublisher(client *redis.Client, prefix string, log *zap.SugaredLogger) *RedisPublisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RedisPublisher{client: client, prefix: prefix, log: log}
}

// Channel returns the channel name for kind.
func (p *RedisPublisher) Channel(kind Kind) string { return p.prefix + string(kind) }

func (p *RedisPublisher) Emit(ctx context.Context, e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		p.log.Errorw("event marshal failed", "kind", string(e.Kind), "err", err)
		return
	}
	if err := p.client.Publish(ctx, p.Channel(e.Kind), b).Err(); err != nil {
		p.log.Warnw("event publish failed", "kind", string(e.Kind), "event_id", e.ID.String(), "err", err)
	}
}
