package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerbook/internal/infrastructure/errorreport"
)

// RecoveryMiddleware turns panics into 500 responses and reports them.
type RecoveryMiddleware struct {
	logger   zerolog.Logger
	reporter errorreport.Reporter
}

// NewRecoveryMiddleware creates a new RecoveryMiddleware. reporter may be nil.
func NewRecoveryMiddleware(logger zerolog.Logger, reporter errorreport.Reporter) *RecoveryMiddleware {
	if reporter == nil {
		reporter = errorreport.NopReporter{}
	}
	return &RecoveryMiddleware{logger: logger, reporter: reporter}
}

// Wrap wraps an http.Handler with panic recovery.
func (m *RecoveryMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			m.logger.Error().
				Interface("error", rec).
				Str("stack", string(debug.Stack())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("panic recovered")

			m.reporter.Report(r.Context(), fmt.Errorf("panic: %v", rec), map[string]string{
				"component": "http",
				"method":    r.Method,
				"path":      r.URL.Path,
			})

			writeJSONError(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
