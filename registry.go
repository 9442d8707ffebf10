package xrelay

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ObserverFactory constructs observers from a config blob.
type ObserverFactory func(cfg map[string]any) (Observer, error)

// ErrUnknownObserver matches every UnknownObserverError.
var ErrUnknownObserver = errors.New("xrelay: unknown observer")

// UnknownObserverError is returned by NewObserver for a name nobody registered.
type UnknownObserverError struct {
	Name string
}

func (e UnknownObserverError) Error() string {
	return fmt.Sprintf("observer %q not registered", e.Name)
}

func (e UnknownObserverError) Is(target error) bool { return target == ErrUnknownObserver }

var (
	observerRegistryMu sync.RWMutex
	observerRegistry   = map[string]ObserverFactory{}
)

// RegisterObserver registers an observer adapter. A later registration under
// the same name replaces the earlier one.
func RegisterObserver(name string, factory ObserverFactory) error {
	if name == "" {
		return errors.New("observer name must not be empty")
	}
	if factory == nil {
		return errors.New("observer factory must not be nil")
	}
	observerRegistryMu.Lock()
	observerRegistry[name] = factory
	observerRegistryMu.Unlock()
	return nil
}

// NewObserver constructs an observer by name with config.
func NewObserver(name string, cfg map[string]any) (Observer, error) {
	observerRegistryMu.RLock()
	f, ok := observerRegistry[name]
	observerRegistryMu.RUnlock()
	if !ok {
		return nil, UnknownObserverError{Name: name}
	}
	return f(cfg)
}

// RegisteredObservers lists the registered adapter names, sorted.
func RegisteredObservers() []string {
	observerRegistryMu.RLock()
	names := make([]string, 0, len(observerRegistry))
	for name := range observerRegistry {
		names = append(names, name)
	}
	observerRegistryMu.RUnlock()
	sort.Strings(names)
	return names
}
