package worker

// Background goroutine that, on every tick, cancels stale empty orders and
// re-enqueues receipts whose last attempt failed.

import (
	"context"
	"time"

	"restopos/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 60 * time.Second
	retryBatchSize    = 20
	// MaxReceiptRetries bounds the cron's re-enqueues of one receipt.
	MaxReceiptRetries = 5
)

// StaleOrderDiscarder is the part of service.OrderService the cron drives.
type StaleOrderDiscarder interface {
	DiscardStaleEmpty(ctx context.Context, olderThan time.Duration) (int, error)
}

// RetryCronConfig holds all dependencies for the cron goroutine.
type RetryCronConfig struct {
	Orders     StaleOrderDiscarder
	StaleAfter time.Duration
	Receipts   repository.ReceiptRepository
	Dispatcher *Dispatcher
}

// StartRetryCron launches the cron goroutine. It stops with ctx.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				runTick(ctx, cfg)
			}
		}
	}()
}

func runTick(ctx context.Context, cfg RetryCronConfig) {
	sweepStaleOrders(ctx, cfg)
	retryReceipts(ctx, cfg)
}

func sweepStaleOrders(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Orders == nil || cfg.StaleAfter <= 0 {
		return
	}
	n, err := cfg.Orders.DiscardStaleEmpty(ctx, cfg.StaleAfter)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: stale order sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("count", n).Msg("retry_cron: discarded stale empty orders")
	}
}

func retryReceipts(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Receipts == nil || cfg.Dispatcher == nil {
		return
	}
	failed, err := cfg.Receipts.ListFailed(ctx, MaxReceiptRetries, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query failed receipts")
		return
	}
	for _, rc := range failed {
		if err := cfg.Dispatcher.retryReceipt(ctx, rc.ID, rc.OrderID); err != nil {
			log.Error().Err(err).Str("receipt_id", rc.ID.String()).Msg("retry_cron: requeue failed")
			return
		}
		log.Info().
			Str("receipt_id", rc.ID.String()).
			Int("retry_count", rc.RetryCount).
			Msg("retry_cron: receipt requeued")
	}
}
