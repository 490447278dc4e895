package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
	Error           string `json:"error,omitempty"`
}

func poolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         true,
	}
}

// HealthHandler pings both credential profiles. The endpoint is unhealthy if
// either pool cannot reach the database.
func HealthHandler(user *UserDB, admin *AdminDB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		pools := map[string]*pgxpool.Pool{
			"user":  user.Pool(),
			"admin": admin.Pool(),
		}
		status := http.StatusOK
		result := make(map[string]*PoolStats, len(pools))
		for name, pool := range pools {
			stats := poolStats(pool)
			if err := pool.Ping(ctx); err != nil {
				stats.Healthy = false
				stats.Error = err.Error()
				status = http.StatusServiceUnavailable
			}
			result[name] = stats
		}

		label := "healthy"
		if status != http.StatusOK {
			label = "unhealthy"
		}
		return c.JSON(status, map[string]interface{}{
			"status": label,
			"pools":  result,
		})
	}
}
