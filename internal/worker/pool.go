package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAudit   = "jobs:audit"
	QueueReceipt = "jobs:receipt"

	JobAudit   = "audit"
	JobReceipt = "receipt"

	// MaxAttempts is how many times the pool runs a job before it goes to
	// the dead letter queue.
	MaxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one job payload. A returned error schedules a retry.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Handlers maps a job type to its handler.
type Handlers map[string]Handler

// pusher is the slice of the redis client the producers need.
type pusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ReceiptJobPayload names the receipt up front so that a retried job
// updates the same record instead of creating another.
type ReceiptJobPayload struct {
	ReceiptID string `json:"receipt_id"`
	OrderID   string `json:"order_id"`
}

// Dispatcher enqueues async jobs into Redis lists. It is the audit sink and
// the receipt queue of the services.
type Dispatcher struct {
	rdb pusher
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// Record enqueues an audit entry.
func (d *Dispatcher) Record(ctx context.Context, e model.AuditEntry) error {
	return d.enqueue(ctx, QueueAudit, JobAudit, e)
}

// EnqueueReceipt enqueues rendering (and mailing) of a new receipt for a
// paid order.
func (d *Dispatcher) EnqueueReceipt(ctx context.Context, orderID uuid.UUID) error {
	return d.retryReceipt(ctx, uuid.New(), orderID)
}

func (d *Dispatcher) retryReceipt(ctx context.Context, receiptID, orderID uuid.UUID) error {
	return d.enqueue(ctx, QueueReceipt, JobReceipt, ReceiptJobPayload{
		ReceiptID: receiptID.String(),
		OrderID:   orderID.String(),
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb pusher, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers Handlers) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers Handlers, id int) {
	queues := []string{QueueAudit, QueueReceipt}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

// processJob runs one job. A failed job is pushed back with its attempt
// count raised, and moved to the DLQ once MaxAttempts is reached.
func processJob(ctx context.Context, rdb pusher, handlers Handlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		deadLetter(ctx, rdb, queue, Job{Payload: json.RawMessage(fmt.Sprintf("%q", raw))}, "malformed job: "+err.Error())
		return
	}
	h, ok := handlers[job.Type]
	if !ok {
		deadLetter(ctx, rdb, queue, job, "no handler for job type "+job.Type)
		return
	}

	job.Attempts++
	err := h.Process(ctx, job.Payload)
	if err == nil {
		log.Debug().Str("type", job.Type).Str("queue", queue).Int("attempt", job.Attempts).Msg("job done")
		return
	}
	if job.Attempts >= MaxAttempts {
		deadLetter(ctx, rdb, queue, job, err.Error())
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeued")
	if perr := push(ctx, rdb, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("failed to requeue job")
	}
}
