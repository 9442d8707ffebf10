package redisstream

import (
	"fmt"
	"strconv"
	"time"

	"github.com/trickstertwo/xrelay"
)

// Record is the stream representation of one xrelay lifecycle event.
// Message payloads are never part of it.
type Record struct {
	Type        string        `json:"type"`
	RunID       string        `json:"run_id,omitempty"`
	Routine     string        `json:"routine,omitempty"`
	Index       int           `json:"index"`
	Source      string        `json:"source,omitempty"`
	Destination string        `json:"destination,omitempty"`
	At          time.Time     `json:"at"`
	Duration    time.Duration `json:"duration_ns,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// NewRecord converts an event into a Record.
func NewRecord(e xrelay.Event) Record {
	r := Record{
		Type:        string(e.Type),
		RunID:       e.RunID,
		Routine:     e.Routine,
		Index:       e.Index,
		Source:      e.Source,
		Destination: e.Destination,
		At:          e.At,
		Duration:    e.Duration,
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}
	return r
}

// values builds the XADD field map: flat fields for stream consumers that
// filter server-side, plus the codec-encoded record.
func (r Record) values(codec xrelay.Codec) (map[string]any, error) {
	body, err := codec.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("redisstream: encode record: %w", err)
	}
	vals := make(map[string]any, 11)
	vals[fieldType] = r.Type
	vals[fieldIndex] = r.Index
	vals[fieldAt] = r.At.UnixNano()
	vals[fieldCodec] = codec.Name()
	vals[fieldRecord] = body
	if r.RunID != "" {
		vals[fieldRunID] = r.RunID
	}
	if r.Routine != "" {
		vals[fieldRoutine] = r.Routine
	}
	if r.Source != "" {
		vals[fieldSource] = r.Source
	}
	if r.Destination != "" {
		vals[fieldDestination] = r.Destination
	}
	if r.Duration > 0 {
		vals[fieldDuration] = int64(r.Duration)
	}
	if r.Error != "" {
		vals[fieldError] = r.Error
	}
	return vals, nil
}

// DecodeRecord rebuilds a Record from stream entry values. The encoded record
// field wins when present; otherwise the flat fields are used.
func DecodeRecord(codec xrelay.Codec, vals map[string]any) (Record, error) {
	if raw, ok := vals[fieldRecord]; ok {
		var body []byte
		switch p := raw.(type) {
		case []byte:
			body = p
		case string:
			body = []byte(p)
		}
		if len(body) > 0 {
			return xrelay.Decode[Record](codec, body)
		}
	}

	r := Record{
		Type:        asString(vals[fieldType]),
		RunID:       asString(vals[fieldRunID]),
		Routine:     asString(vals[fieldRoutine]),
		Source:      asString(vals[fieldSource]),
		Destination: asString(vals[fieldDestination]),
		Error:       asString(vals[fieldError]),
	}
	if r.Type == "" {
		return Record{}, fmt.Errorf("redisstream: entry has no %q field", fieldType)
	}
	if n, ok := toInt64(vals[fieldIndex]); ok {
		r.Index = int(n)
	}
	if ns, ok := toInt64(vals[fieldAt]); ok && ns > 0 {
		r.At = time.Unix(0, ns)
	}
	if ns, ok := toInt64(vals[fieldDuration]); ok {
		r.Duration = time.Duration(ns)
	}
	return r, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		if n == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return int64(f), true
		}
	case []byte:
		return toInt64(string(n))
	}
	return 0, false
}
