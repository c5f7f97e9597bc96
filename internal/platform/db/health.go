package db

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection pool snapshot the claim store health
// endpoint reports.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats snapshots the pool counters.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// HealthHandler reports whether the claim store is reachable and, when
// a default hospital is configured, whether its schema has been
// provisioned. A failed ping answers 503 with the pool counters
// attached, which is what the load balancer keys on.
func HealthHandler(pool *pgxpool.Pool, defaultHospital string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		stats := GetPoolStats(pool)
		if err := pool.Ping(ctx); err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		resp := map[string]interface{}{
			"status": "healthy",
			"pool":   stats,
		}
		if defaultHospital != "" {
			schema := fmt.Sprintf("hospital_%s", defaultHospital)
			var provisioned bool
			if err := pool.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
				schema).Scan(&provisioned); err == nil {
				resp["default_schema_provisioned"] = provisioned
			}
		}
		return c.JSON(http.StatusOK, resp)
	}
}
