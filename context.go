package xrelay

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ctxKey is the base for all context keys in xrelay (prevents collisions).
type ctxKey string

const (
	loggerCtxKey  ctxKey = "xrelay:logger"
	clockCtxKey   ctxKey = "xrelay:clock"
	routineCtxKey ctxKey = "xrelay:routine"
)

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}

// LoggerFromContext retrieves the logger the Manager injected for a routine.
func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	if v := ctx.Value(loggerCtxKey); v != nil {
		if l, ok := v.(*xlog.Logger); ok && l != nil {
			return l, true
		}
	}
	return nil, false
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clockCtxKey, c)
}

// ClockFromContext retrieves the clock the Manager injected for a routine.
func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	if v := ctx.Value(clockCtxKey); v != nil {
		if c, ok := v.(xclock.Clock); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

func injectRoutineName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, routineCtxKey, name)
}

// RoutineNameFromContext returns the name of the routine whose Run received ctx.
func RoutineNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(routineCtxKey).(string)
	return name, ok
}

// InjectAll is a convenience helper to inject all standard dependencies.
func InjectAll(ctx context.Context, name string, logger *xlog.Logger, clock xclock.Clock) context.Context {
	ctx = injectRoutineName(ctx, name)
	ctx = injectLogger(ctx, logger)
	ctx = injectClock(ctx, clock)
	return ctx
}
