package audit

import (
	"context"
	"log/slog"
)

// Sink is the terminal destination for audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Worker consumes audit events from the publisher's inbox and forwards them
// to the sink. Sink failures are logged, not fatal; the worker only stops
// when its context is cancelled.
type Worker struct {
	inbox  <-chan Event
	sink   Sink
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, sink Sink, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{inbox: inbox, sink: sink, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Write(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit sink write failed",
					"action", event.Action,
					"user_id", event.UserID,
					"error", err,
				)
			}
		}
	}
}
