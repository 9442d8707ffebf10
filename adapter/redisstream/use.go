package redisstream

import (
	"fmt"

	"github.com/trickstertwo/xrelay"
)

// ObserverName is the registry name of the Redis Streams observer.
const ObserverName = "redis-streams"

func init() {
	if err := xrelay.RegisterObserver(ObserverName, func(cfg map[string]any) (xrelay.Observer, error) {
		o, err := NewObserver(ConfigFromMap(cfg))
		if err != nil {
			return nil, err
		}
		return o, nil
	}); err != nil {
		panic(fmt.Errorf("xrelay: failed to register observer %q: %w", ObserverName, err))
	}
}

// Use builds an Observer and returns it with the xrelay option that attaches
// it. Mirrors xlog/xclock "Use" behavior: explicit construction, fail fast.
//
// It panics if Redis is unreachable or cfg is invalid.
func Use(cfg Config, opts ...Option) (*Observer, xrelay.Option) {
	o, err := NewObserver(cfg, opts...)
	if err != nil {
		panic(fmt.Errorf("redisstream.Use: %w", err))
	}
	return o, xrelay.WithObserver(o)
}
