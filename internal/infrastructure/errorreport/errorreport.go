// Package errorreport forwards unexpected failures to Sentry.
package errorreport

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter records an error that no caller can act on.
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// Config holds Sentry settings. An empty DSN disables reporting.
type Config struct {
	DSN         string
	Environment string
	SampleRate  float64
	Release     string
}

// Init configures the global Sentry client and returns a reporter bound to
// its hub plus a flush func for shutdown.
func Init(cfg Config) (Reporter, func(), error) {
	if cfg.DSN == "" {
		return NopReporter{}, func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		SampleRate:  cfg.SampleRate,
		Release:     cfg.Release,
	})
	if err != nil {
		return nil, nil, err
	}

	flush := func() { sentry.Flush(5 * time.Second) }
	return NewSentryReporter(sentry.CurrentHub()), flush, nil
}

// SentryReporter sends errors through a Sentry hub.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter creates a reporter on hub.
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	return &SentryReporter{hub: hub}
}

// Report captures err with tags on a scope local to this call.
func (r *SentryReporter) Report(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}

	hub := r.hub
	if h := sentry.GetHubFromContext(ctx); h != nil {
		hub = h
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// NopReporter drops everything.
type NopReporter struct{}

// Report does nothing.
func (NopReporter) Report(context.Context, error, map[string]string) {}
