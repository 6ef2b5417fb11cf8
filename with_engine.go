package claudeweb

import (
	"context"
	"fmt"
)

// WithEngine manages engine lifecycle with automatic cleanup.
//
// It creates an engine with the provided options, runs fn, and closes the
// engine afterwards. A Close failure is logged and does not override fn's
// error.
//
//	err := claudeweb.WithEngine(ctx, func(e *claudeweb.Engine) error {
//	    if err := e.CreateSession(ctx, "s1", dir); err != nil {
//	        return err
//	    }
//	    _, err := e.ExecuteQuery(ctx, "s1", "Hello")
//	    return err
//	}, claudeweb.WithLogger(log))
func WithEngine(ctx context.Context, fn func(*Engine) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	engine, err := New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	defer func() {
		// Close with a fresh context so a cancelled ctx still tears sessions down.
		if closeErr := engine.Close(context.WithoutCancel(ctx)); closeErr != nil {
			engine.log.Warn("failed to close engine", "error", closeErr)
		}
	}()

	return fn(engine)
}
