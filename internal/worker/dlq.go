package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DeadLetterKey is the list holding the jobs of queue that ran out of
// attempts or could not be decoded. Entries stay there until someone
// inspects and replays them by hand.
func DeadLetterKey(queue string) string { return "dlq:" + queue }

type DLQEntry struct {
	Queue    string          `json:"queue"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
}

func deadLetter(ctx context.Context, rdb pusher, queue string, job Job, reason string) {
	entry := DLQEntry{
		Queue:    queue,
		Type:     job.Type,
		Payload:  job.Payload,
		Attempts: job.Attempts,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	}
	l := log.With().Str("queue", queue).Str("type", job.Type).Int("attempts", job.Attempts).Logger()

	data, err := json.Marshal(entry)
	if err != nil {
		l.Error().Err(err).Msg("dlq: entry not encodable, job dropped")
		return
	}
	if err := rdb.LPush(ctx, DeadLetterKey(queue), data).Err(); err != nil {
		l.Error().Err(err).Str("reason", reason).Msg("dlq: push failed, job dropped")
		return
	}
	l.Warn().Str("reason", reason).Msg("dlq: job dead-lettered")
}

// DeadLetterCounts returns the length of each queue's dead letter list in a
// single round trip.
func DeadLetterCounts(ctx context.Context, rdb redis.Cmdable, queues ...string) (map[string]int64, error) {
	cmds := make([]*redis.IntCmd, len(queues))
	_, err := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, q := range queues {
			cmds[i] = p.LLen(ctx, DeadLetterKey(q))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(queues))
	for i, q := range queues {
		out[q] = cmds[i].Val()
	}
	return out, nil
}
