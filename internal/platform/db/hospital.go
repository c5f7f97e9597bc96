package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	HospitalIDKey contextKey = "hospital_id"
	DBConnKey     contextKey = "db_conn"
)

var hospitalIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// HospitalMiddleware resolves the caller's hospital scope and pins the
// request to that hospital's schema. Each hospital tenant lives in its
// own schema (hospital_<id>); the scoped connection rides the request
// context so repositories never choose a schema themselves.
func HospitalMiddleware(pool *pgxpool.Pool, defaultHospital string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hospitalID := extractHospitalID(c, defaultHospital)

			if !hospitalIDPattern.MatchString(hospitalID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			schema := fmt.Sprintf("hospital_%s", hospitalID)
			_, err = conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, shared, public", schema))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "hospital scope resolution failed")
			}

			ctx = context.WithValue(ctx, HospitalIDKey, hospitalID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("hospital_id", hospitalID)

			return next(c)
		}
	}
}

// extractHospitalID resolves the hospital scope in priority order: the
// authenticated JWT claim, then the X-Hospital-ID header, then the
// configured default.
func extractHospitalID(c echo.Context, defaultHospital string) string {
	if hid, ok := c.Get("jwt_hospital_id").(string); ok && hid != "" {
		return hid
	}
	if hid := c.Request().Header.Get("X-Hospital-ID"); hid != "" {
		return hid
	}
	return defaultHospital
}

// ConnFromContext retrieves the hospital-scoped connection, if any.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// HospitalFromContext retrieves the resolved hospital identifier.
func HospitalFromContext(ctx context.Context) string {
	hid, _ := ctx.Value(HospitalIDKey).(string)
	return hid
}

// CreateHospitalSchema provisions the schema for a new hospital tenant
// and runs migrations against it when a migrations directory is given.
func CreateHospitalSchema(ctx context.Context, pool *pgxpool.Pool, hospitalID string, migrationsDir string) error {
	if !hospitalIDPattern.MatchString(hospitalID) {
		return fmt.Errorf("invalid hospital identifier: %s", hospitalID)
	}

	schema := fmt.Sprintf("hospital_%s", hospitalID)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		migrator := NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
