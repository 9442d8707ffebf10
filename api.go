package xrelay

import (
	"context"
)

// Routine is a single-use unit of concurrent work.
// Run is called at most once, on its own goroutine.
type Routine interface {
	Run(ctx context.Context) error
}

// Named is optionally implemented by routines to label logs, events and errors.
type Named interface {
	Name() string
}

// RoutineFunc is an Adapter that lets a plain function satisfy Routine.
type RoutineFunc func(ctx context.Context) error

func (f RoutineFunc) Run(ctx context.Context) error { return f(ctx) }

// Middleware composes concerns around a Routine.
type Middleware func(next Routine) Routine

// Observer receives lifecycle events. Implementations should be non-blocking.
type Observer interface {
	OnEvent(e Event)
}

const unnamed = "Unnamed"

// NameOf returns the routine's diagnostic label, "Unnamed" if it has none.
func NameOf(r Routine) string {
	if n, ok := r.(Named); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return unnamed
}

// Compile-time contract checks.
var (
	_ Routine = (*Mediator[string, any])(nil)
	_ Named   = (*Mediator[string, any])(nil)
)
