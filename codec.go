package xrelay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Codec encodes event records for sinks outside the process, such as the
// Redis Streams observer.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// JSONCodec is registered as "json".
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
func (JSONCodec) Name() string                    { return "json" }

// CodecFactory returns a fresh codec for one observer.
type CodecFactory func() Codec

// ErrUnknownCodec matches every UnknownCodecError.
var ErrUnknownCodec = errors.New("xrelay: unknown codec")

// UnknownCodecError names a codec that was never registered.
type UnknownCodecError struct {
	Name string
}

func (e UnknownCodecError) Error() string {
	return fmt.Sprintf("codec %q not registered", e.Name)
}

func (e UnknownCodecError) Is(target error) bool { return target == ErrUnknownCodec }

var (
	codecsMu sync.RWMutex
	codecs   = map[string]CodecFactory{
		"json": func() Codec { return JSONCodec{} },
	}
)

// RegisterCodec makes a codec selectable by name in observer configs.
func RegisterCodec(name string, factory CodecFactory) error {
	if name == "" {
		return errors.New("codec name must not be empty")
	}
	if factory == nil {
		return errors.New("codec factory must not be nil")
	}
	codecsMu.Lock()
	codecs[name] = factory
	codecsMu.Unlock()
	return nil
}

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	codecsMu.RLock()
	f, ok := codecs[name]
	codecsMu.RUnlock()
	if !ok {
		return nil, UnknownCodecError{Name: name}
	}
	return f(), nil
}

// RegisteredCodecs lists the codec names, sorted.
func RegisteredCodecs() []string {
	codecsMu.RLock()
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	codecsMu.RUnlock()
	sort.Strings(names)
	return names
}

// Decode unmarshals a stored record body into T.
func Decode[T any](c Codec, data []byte) (T, error) {
	var v T
	err := c.Unmarshal(data, &v)
	return v, err
}
