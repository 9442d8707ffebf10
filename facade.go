package xrelay

import (
	"context"
	"sync"
)

var (
	defaultOpts   []Option
	defaultOptsMu sync.RWMutex
)

// DefaultOptions returns a copy of the process-wide default options.
func DefaultOptions() []Option {
	defaultOptsMu.RLock()
	defer defaultOptsMu.RUnlock()
	out := make([]Option, len(defaultOpts))
	copy(out, defaultOpts)
	return out
}

// SetDefaultOptions replaces the process-wide default options used by Run.
func SetDefaultOptions(opts ...Option) {
	defaultOptsMu.Lock()
	defaultOpts = append([]Option(nil), opts...)
	defaultOptsMu.Unlock()
}

// Run is the Facade: it runs routines on a fresh Manager built from the
// default options and returns the manager's result.
func Run(ctx context.Context, routines ...Routine) error {
	m := NewManager(DefaultOptions()...)
	defer func() { _ = m.Close(context.Background()) }()
	for _, r := range routines {
		m.AddRoutine(r)
	}
	return m.Run(ctx)
}
