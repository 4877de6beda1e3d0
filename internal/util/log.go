package util

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	CTXKeyRunID contextKey = "run_id"
)

// WithRunID stores the id of the current batch run on ctx and attaches a logger carrying it.
func WithRunID(ctx context.Context, runID string) context.Context {
	ctx = context.WithValue(ctx, CTXKeyRunID, runID)
	l := log.With().Str("run_id", runID).Logger()

	return l.WithContext(ctx)
}

// RunIDFromContext returns the run id stored on ctx or an empty string.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CTXKeyRunID).(string)
	return id
}

// LogFromContext returns a request-specific zerolog instance using the provided context.
// The returned logger will have the run id attached, if available. Falls back to the
// global logger.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	l := log.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}

	return l
}
