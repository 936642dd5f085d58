package worker

// Dead letter queue: closing-report jobs that failed MaxJobAttempts times, or
// whose type has no handler, are parked in dlq:{queue} until an operator
// inspects them with `washlyctl dlq` and requeues them with `-requeue`.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry is a parked job plus the reason it was given up on.
type DLQEntry struct {
	Queue    string    `json:"queue"`
	Job      Job       `json:"job"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// SessionID extracts the cash session of a closing-report entry, "" for other job types.
func (e DLQEntry) SessionID() string {
	if e.Job.Type != JobSessionReport {
		return ""
	}
	var p SessionReportPayload
	if err := json.Unmarshal(e.Job.Payload, &p); err != nil {
		return ""
	}
	return p.SessionID
}

func dlqKey(queue string) string { return DLQPrefix + queue }

// SendToDLQ parks job. Failures are logged only; the job is then lost, but the
// report sweep re-enqueues any closed session whose report was never sent.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, job Job, reason string) {
	entry := DLQEntry{Queue: queue, Job: job, Reason: reason, FailedAt: time.Now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal entry")
		return
	}
	if err := rdb.LPush(ctx, dlqKey(queue), data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: push")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Str("session_id", entry.SessionID()).
		Int("attempts", job.Attempts).
		Str("reason", reason).
		Msg("dlq: job parked")
}

// DLQLength returns the number of parked jobs of queue.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, dlqKey(queue)).Result()
}

// DLQPeek returns up to n of the most recent entries without removing them.
func DLQPeek(ctx context.Context, rdb *redis.Client, queue string, n int64) ([]DLQEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	raws, err := rdb.LRange(ctx, dlqKey(queue), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]DLQEntry, 0, len(raws))
	for _, raw := range raws {
		var e DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			log.Warn().Err(err).Msg("dlq: skipping unreadable entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DLQRequeue moves up to n of the oldest parked jobs back to their queue with
// a fresh attempt counter. Returns how many were moved.
func DLQRequeue(ctx context.Context, rdb *redis.Client, queue string, n int) (int, error) {
	moved := 0
	for moved < n {
		raw, err := rdb.RPop(ctx, dlqKey(queue)).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return moved, err
		}
		var e DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			log.Warn().Err(err).Msg("dlq: dropping unreadable entry")
			continue
		}
		e.Job.Attempts = 0
		if err := pushJob(ctx, rdb, queue, e.Job); err != nil {
			// Put it back so nothing is lost.
			_ = rdb.RPush(ctx, dlqKey(queue), raw).Err()
			return moved, fmt.Errorf("requeue %s: %w", e.SessionID(), err)
		}
		moved++
	}
	return moved, nil
}
