package xrelay

import (
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

type namedObserver struct {
	name string
	cfg  map[string]any
}

// Builder assembles the options for a Manager and its Mediators from
// registered observer adapters and generic config maps (Builder pattern).
type Builder struct {
	named     []namedObserver
	instances []Observer

	middlewares []Middleware
	logger      *xlog.Logger
	clock       xclock.Clock

	poolWorkers int
	poolBuffer  int

	mediatorCfg map[string]any

	resolved  []Option
	observers []Observer
}

// NewBuilder returns an empty builder; unset values fall back to the option defaults.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithObserver attaches the observer adapter registered under name.
func (b *Builder) WithObserver(name string, cfg map[string]any) *Builder {
	b.named = append(b.named, namedObserver{name: name, cfg: cfg})
	b.resolved = nil
	return b
}

// WithObserverInstance attaches ready observers (e.g., from an adapter's Use()).
func (b *Builder) WithObserverInstance(obs ...Observer) *Builder {
	for _, o := range obs {
		if o != nil {
			b.instances = append(b.instances, o)
		}
	}
	b.resolved = nil
	return b
}

func (b *Builder) WithMiddleware(mw ...Middleware) *Builder {
	b.middlewares = append(b.middlewares, mw...)
	b.resolved = nil
	return b
}

func (b *Builder) WithLogger(l *xlog.Logger) *Builder {
	b.logger = l
	b.resolved = nil
	return b
}

func (b *Builder) WithClock(c xclock.Clock) *Builder {
	b.clock = c
	b.resolved = nil
	return b
}

func (b *Builder) WithObserverPool(workers, bufferSize int) *Builder {
	b.poolWorkers = workers
	b.poolBuffer = bufferSize
	b.resolved = nil
	return b
}

// WithMediatorConfig sets the mediator configuration from a generic map
// (see MediatorConfigFromMap).
func (b *Builder) WithMediatorConfig(cfg map[string]any) *Builder {
	b.mediatorCfg = cfg
	b.resolved = nil
	return b
}

// Options resolves the builder into options. Named observers are constructed
// once; every component built from this builder shares the same instances.
func (b *Builder) Options() ([]Option, error) {
	if b.resolved != nil {
		return b.resolved, nil
	}

	observers := make([]Observer, 0, len(b.named)+len(b.instances))
	for _, n := range b.named {
		o, err := NewObserver(n.name, n.cfg)
		if err != nil {
			return nil, err
		}
		observers = append(observers, o)
	}
	observers = append(observers, b.instances...)

	mc := DefaultMediatorConfig()
	if b.mediatorCfg != nil {
		mc = MediatorConfigFromMap(b.mediatorCfg)
	}
	if err := mc.Validate(); err != nil {
		return nil, err
	}

	opts := []Option{
		WithObserver(observers...),
		WithMediatorConfig(mc),
	}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.clock != nil {
		opts = append(opts, WithClock(b.clock))
	}
	if b.poolWorkers > 0 || b.poolBuffer > 0 {
		opts = append(opts, WithObserverPool(b.poolWorkers, b.poolBuffer))
	}
	if len(b.middlewares) > 0 {
		opts = append(opts, WithMiddleware(b.middlewares...))
	}

	b.resolved = opts
	b.observers = observers
	return opts, nil
}

// Observers returns the observer instances the builder resolved.
func (b *Builder) Observers() ([]Observer, error) {
	if _, err := b.Options(); err != nil {
		return nil, err
	}
	out := make([]Observer, len(b.observers))
	copy(out, b.observers)
	return out, nil
}

// BuildManager constructs a Manager.
func (b *Builder) BuildManager() (*Manager, error) {
	opts, err := b.Options()
	if err != nil {
		return nil, err
	}
	return NewManager(opts...), nil
}

// BuildMediator constructs a Mediator for identities E and payloads M.
func BuildMediator[E comparable, M any](b *Builder) (*Mediator[E, M], error) {
	opts, err := b.Options()
	if err != nil {
		return nil, err
	}
	return NewMediator[E, M](opts...), nil
}
