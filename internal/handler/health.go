package handler

import (
	"context"
	"net/http"
	"time"

	"restopos/internal/infra"
	"restopos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// DB and Redis are required; an open kitchen circuit is reported but does
// not fail the check, since orders can still be taken and paid.
func Health(db *gorm.DB, rdb *redis.Client, kitchenCB *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		var dlq map[string]int64
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		} else {
			dlq, _ = worker.DeadLetterCounts(ctx, rdb, worker.QueueAudit, worker.QueueReceipt)
		}

		var kitchen any = "not configured"
		if kitchenCB != nil {
			kitchen = kitchenCB.Snapshot()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":      status == http.StatusOK,
			"db":      dbStatus,
			"redis":   redisStatus,
			"kitchen": kitchen,
			"dlq":     dlq,
		})
	}
}
