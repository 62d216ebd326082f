package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/sequent/event"
)

// Logging returns middleware that logs event handling start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, e event.Event, next Handler) error {
		logger.Debug("event handling started",
			slog.String("event_name", e.Name()),
			slog.String("event_id", e.EventID().String()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("event handling failed",
				slog.String("event_name", e.Name()),
				slog.String("event_id", e.EventID().String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("event handled",
				slog.String("event_name", e.Name()),
				slog.String("event_id", e.EventID().String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
