// Package bootstrap wires the process-wide dependencies shared by the commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"booking/internal/cache"
	"booking/internal/config"
	"booking/internal/database"
	"booking/internal/middleware"
	"booking/internal/models"
	"booking/internal/observability"
	"booking/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ServiceName labels traces; defaults to "booking-api".
	ServiceName string
	// SkipSchema leaves the schema untouched (cmd/migrate manages it itself).
	SkipSchema bool
	// SeedDemoData fills an empty development database with seed.DefaultOptions.
	SeedDemoData bool
}

// Runtime is the set of connections a command runs against.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	// Redis is nil when the server is unreachable.
	Redis *redis.Client

	shutdownTracing func(context.Context) error
}

// InitRuntime configures logging and tracing, connects to the database and
// Redis and brings the schema up to date.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	middleware.ConfigureLogger(os.Stdout, cfg.Env, os.Getenv("LOG_LEVEL"))

	if opts.ServiceName == "" {
		opts.ServiceName = "booking-api"
	}
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:  opts.ServiceName,
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSamplerRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if !opts.SkipSchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, fmt.Errorf("schema apply failed: %w", err)
		}
	}

	// May be nil if unreachable.
	rdb := cache.InitRedis(ctx, cfg.RedisURL)

	rt := &Runtime{Config: cfg, DB: db, Redis: rdb, shutdownTracing: shutdownTracing}

	if opts.SeedDemoData {
		if err := rt.seedIfEmpty(ctx); err != nil {
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return rt, nil
}

// seedIfEmpty seeds development databases that have no users yet.
func (r *Runtime) seedIfEmpty(ctx context.Context) error {
	if !strings.EqualFold(r.Config.Env, "development") {
		return nil
	}
	var users int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}
	_, err := seed.Seed(ctx, r.DB, seed.DefaultOptions, time.Now())
	return err
}

// ShutdownTracing flushes pending spans. Use it when a server owns the connections.
func (r *Runtime) ShutdownTracing(ctx context.Context) error {
	if r.shutdownTracing == nil {
		return nil
	}
	return r.shutdownTracing(ctx)
}

// Close flushes traces and closes the database and Redis connections.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := r.ShutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}
	database.Close()
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		middleware.Logger.Warn("runtime close", slog.String("error", err.Error()))
		return err
	}
	return nil
}
