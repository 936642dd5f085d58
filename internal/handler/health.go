package handler

import (
	"context"
	"net/http"
	"time"

	"washly/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health checks DB and Redis connectivity and reports the closing-report
// backlog. Redis is optional: a nil client reports "disabled" and does not
// fail the check. A non-empty DLQ is reported but is not a failure.
func Health(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		body := gin.H{"db": "connected", "redis": "disabled"}
		healthy := true

		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			body["db"] = "error"
			healthy = false
		}

		if rdb != nil {
			body["redis"] = "connected"
			if rdb.Ping(ctx).Err() != nil {
				body["redis"] = "error"
				healthy = false
			} else {
				pending, _ := rdb.LLen(ctx, worker.QueueSessionReports).Result()
				parked, _ := worker.DLQLength(ctx, rdb, worker.QueueSessionReports)
				body["report_queue"] = gin.H{"pending": pending, "dead": parked}
			}
		}

		body["ok"] = healthy
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, body)
	}
}
