package redisstream

import (
	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xlog"
)

// Option configures an Observer.
type Option func(*Observer)

// WithLogger injects a custom xlog logger for write failures.
func WithLogger(l *xlog.Logger) Option {
	return func(o *Observer) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClient reuses an existing client instead of dialing from Config.
// Close still closes it.
func WithClient(c *redis.Client) Option {
	return func(o *Observer) { o.client = c }
}
