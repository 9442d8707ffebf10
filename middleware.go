package xrelay

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/trickstertwo/xrelay"

// namedRoutine keeps the inner routine's name visible through middleware.
type namedRoutine struct {
	Routine
	name string
}

func (n namedRoutine) Name() string { return n.name }

// wrap returns fn as a Routine carrying next's name.
func wrap(next Routine, fn RoutineFunc) Routine {
	return namedRoutine{Routine: fn, name: NameOf(next)}
}

// TimeoutMiddleware bounds a routine's run time by cancelling its context after d.
// The routine must honor ctx; the manager never abandons a running routine.
func TimeoutMiddleware(d time.Duration) Middleware {
	if d <= 0 {
		return func(next Routine) Routine { return next }
	}
	return func(next Routine) Routine {
		return wrap(next, func(ctx context.Context) error {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Run(tctx)
		})
	}
}

// RecoveryMiddleware converts a panic into an ordinary error, so the manager
// reports a RoutineError instead of a TaskExecutionError.
func RecoveryMiddleware() Middleware {
	return func(next Routine) Routine {
		return wrap(next, func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next.Run(ctx)
		})
	}
}

// TracingMiddleware opens one OpenTelemetry span per routine run.
// A nil provider uses the global one.
func TracingMiddleware(tp trace.TracerProvider) Middleware {
	return func(next Routine) Routine {
		name := NameOf(next)
		return wrap(next, func(ctx context.Context) error {
			provider := tp
			if provider == nil {
				provider = otel.GetTracerProvider()
			}
			ctx, span := provider.Tracer(tracerName).Start(ctx, "routine "+name,
				trace.WithAttributes(attribute.String("xrelay.routine", name)))
			defer span.End()

			err := next.Run(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		})
	}
}

// Chain composes middlewares around a routine in order.
func Chain(r Routine, mws ...Middleware) Routine {
	if len(mws) == 0 {
		return r
	}
	wrapped := r
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
