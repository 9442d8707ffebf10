package xrelay

import (
	"fmt"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DefaultChannelCapacity is the number of slots in each tunnel channel.
const DefaultChannelCapacity = 32

// MediatorConfig controls mediator behavior.
type MediatorConfig struct {
	// ChannelCapacity is the buffer size of both channels created per Connect (default: 32).
	ChannelCapacity int
	// FailOnDisconnect reports a closed connector as TargetUnreachableError for its own
	// identity, failing the whole mediator run (default: false).
	FailOnDisconnect bool
}

// DefaultMediatorConfig returns the configuration used when none is supplied.
func DefaultMediatorConfig() MediatorConfig {
	return MediatorConfig{
		ChannelCapacity:  DefaultChannelCapacity,
		FailOnDisconnect: false,
	}
}

// Validate checks the configuration.
func (c MediatorConfig) Validate() error {
	if c.ChannelCapacity < 1 {
		return fmt.Errorf("config: channel_capacity must be >= 1, got %d", c.ChannelCapacity)
	}
	return nil
}

// MediatorConfigFromMap safely converts a generic map to MediatorConfig with defaults.
func MediatorConfigFromMap(m map[string]any) MediatorConfig {
	c := DefaultMediatorConfig()

	switch v := m["channel_capacity"].(type) {
	case int:
		if v > 0 {
			c.ChannelCapacity = v
		}
	case int64:
		if v > 0 {
			c.ChannelCapacity = int(v)
		}
	case float64:
		if v > 0 {
			c.ChannelCapacity = int(v)
		}
	}
	if v, ok := m["fail_on_disconnect"].(bool); ok {
		c.FailOnDisconnect = v
	}

	return c
}

// settings is the shared configuration for Manager and Mediator.
// Options that do not apply to the component being built are ignored.
type settings struct {
	logger      *xlog.Logger
	clock       xclock.Clock
	observers   []Observer
	poolWorkers int
	poolBuffer  int
	middlewares []Middleware
	mediator    MediatorConfig
}

// Option configures a Manager or a Mediator.
type Option func(*settings)

func newSettings(opts []Option) settings {
	s := settings{mediator: DefaultMediatorConfig()}
	for _, o := range opts {
		if o != nil {
			o(&s)
		}
	}
	if s.logger == nil {
		s.logger = xlog.Default()
	}
	if s.clock == nil {
		s.clock = xclock.Default()
	}
	if s.mediator.ChannelCapacity < 1 {
		s.mediator.ChannelCapacity = DefaultChannelCapacity
	}
	return s
}

// newNotifier attaches the logging observer first, then the configured ones.
func (s settings) newNotifier() *notifier {
	n := &notifier{clock: s.clock}
	if s.poolWorkers > 0 || s.poolBuffer > 0 {
		n.pool = NewObserverPool(s.poolWorkers, s.poolBuffer)
	}

	hasLoggingObserver := false
	for _, o := range s.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver && s.logger != nil {
		n.AddObserver(LoggingObserver{Logger: s.logger})
	}
	for _, o := range s.observers {
		n.AddObserver(o)
	}
	return n
}

// WithLogger injects a custom xlog logger (default: xlog.Default()).
func WithLogger(l *xlog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock injects a custom xclock clock (default: xclock.Default()).
func WithClock(c xclock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...Observer) Option {
	return func(s *settings) {
		for _, o := range obs {
			if o != nil {
				s.observers = append(s.observers, o)
			}
		}
	}
}

// WithObserverPool dispatches observer calls asynchronously on workers goroutines.
func WithObserverPool(workers, bufferSize int) Option {
	return func(s *settings) {
		s.poolWorkers = workers
		s.poolBuffer = bufferSize
		if s.poolWorkers < 1 && s.poolBuffer < 1 {
			s.poolWorkers = 1
		}
	}
}

// WithMiddleware wraps every routine added to a Manager (first wraps outermost).
func WithMiddleware(mw ...Middleware) Option {
	return func(s *settings) { s.middlewares = append(s.middlewares, mw...) }
}

// WithMediatorConfig replaces the mediator configuration.
func WithMediatorConfig(cfg MediatorConfig) Option {
	return func(s *settings) { s.mediator = cfg }
}

// WithChannelCapacity sets the per-tunnel channel capacity.
func WithChannelCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.mediator.ChannelCapacity = n
		}
	}
}

// WithFailOnDisconnect makes a closed connector fail the mediator run.
func WithFailOnDisconnect() Option {
	return func(s *settings) { s.mediator.FailOnDisconnect = true }
}

// WithTimeout is shorthand for WithMiddleware(TimeoutMiddleware(d)).
func WithTimeout(d time.Duration) Option {
	return WithMiddleware(TimeoutMiddleware(d))
}
