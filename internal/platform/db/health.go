package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Health is the payload of the database health endpoint. StarvedAcquires
// counts acquires that had to wait for a free connection; a rising value
// during booking rushes means the pool is sized too small.
type Health struct {
	Reachable       bool   `json:"reachable"`
	Error           string `json:"error,omitempty"`
	InUseConns      int32  `json:"in_use_conns"`
	IdleConns       int32  `json:"idle_conns"`
	MaxConns        int32  `json:"max_conns"`
	StarvedAcquires int64  `json:"starved_acquires"`
}

// CheckHealth pings the database and snapshots pool usage. The ping is
// bounded so a wedged database cannot stall the probe.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) Health {
	stat := pool.Stat()
	h := Health{
		InUseConns:      stat.AcquiredConns(),
		IdleConns:       stat.IdleConns(),
		MaxConns:        stat.MaxConns(),
		StarvedAcquires: stat.EmptyAcquireCount(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		h.Error = err.Error()
		return h
	}
	h.Reachable = true
	return h
}

// HealthHandler serves the database health endpoint.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := CheckHealth(c.Request().Context(), pool)
		return c.JSON(healthStatus(h), h)
	}
}

func healthStatus(h Health) int {
	if !h.Reachable {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
