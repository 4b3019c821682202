package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
// Returns 200 when both respond, 503 otherwise.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
