// Package metrics provides Prometheus metrics for the bot.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttemptsTotal counts tracker login attempts.
	// Labels: strategy (oauth, basic auth), outcome (success, skipped, rejected, error)
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jirabot",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of tracker login attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// CommandsTotal counts dispatched chat commands.
	// Labels: command (jira, jira create, help, ...)
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jirabot",
			Subsystem: "chat",
			Name:      "commands_total",
			Help:      "Total number of chat commands dispatched",
		},
		[]string{"command"},
	)

	// LookupsTotal counts issue lookups.
	// Labels: outcome (found, not_found, error, invalid)
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jirabot",
			Subsystem: "jira",
			Name:      "lookups_total",
			Help:      "Total number of issue lookups by outcome",
		},
		[]string{"outcome"},
	)

	// LookupDuration tracks how long tracker fetches take.
	LookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jirabot",
			Subsystem: "jira",
			Name:      "lookup_duration_seconds",
			Help:      "Duration of issue fetches against the tracker in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Serve exposes /metrics and /health on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 5 * time.Second

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics on %s: %w", addr, err)
	}
	return nil
}
