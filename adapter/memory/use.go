package memory

import (
	"fmt"

	"github.com/trickstertwo/xrelay"
)

// ObserverName is the registry name of the in-memory recorder.
const ObserverName = "memory"

func init() {
	if err := xrelay.RegisterObserver(ObserverName, func(cfg map[string]any) (xrelay.Observer, error) {
		return NewRecorder(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("xrelay: failed to register observer %q: %w", ObserverName, err))
	}
}

// Use builds a Recorder and returns it with the option that attaches it, so
// the same recorder can be shared by a Manager and a Mediator.
//
// Example:
//
//	rec, opt := memory.Use(memory.Config{Capacity: 4096})
//	med := xrelay.NewMediator[string, int](opt)
//	mgr := xrelay.NewManager(opt)
func Use(cfg Config) (*Recorder, xrelay.Option) {
	r := NewRecorder(cfg)
	return r, xrelay.WithObserver(r)
}
