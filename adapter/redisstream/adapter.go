package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xrelay"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("redisstream: observer closed")

// Observer implements xrelay.Observer by appending every lifecycle event as a
// Record to a Redis stream. Writes are synchronous; pair it with
// xrelay.WithObserverPool so routing never waits on Redis.
type Observer struct {
	cfg    Config
	client *redis.Client
	codec  xrelay.Codec
	logger *xlog.Logger

	closeOnce sync.Once
	closed    atomic.Bool

	metrics observerMetrics
}

type observerMetrics struct {
	written atomic.Uint64
	failed  atomic.Uint64
}

// Stats is a snapshot of the observer's counters.
type Stats struct {
	Written uint64
	Failed  uint64
}

var _ xrelay.Observer = (*Observer)(nil)

// NewObserver validates cfg, connects and pings Redis.
func NewObserver(cfg Config, opts ...Option) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := xrelay.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	o := &Observer{
		cfg:    cfg,
		codec:  codec,
		logger: xlog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if o.client == nil {
		o.client = redis.NewClient(clientOptions(cfg))
	}
	if err := ping(o.client); err != nil {
		_ = o.client.Close()
		return nil, err
	}
	return o, nil
}

func clientOptions(cfg Config) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}
	return opts
}

// OnEvent writes e to the stream. Failures are logged and counted, never
// propagated to the routine that produced the event.
func (o *Observer) OnEvent(e xrelay.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.WriteTimeout)
	defer cancel()

	if err := o.Write(ctx, e); err != nil && !errors.Is(err, ErrClosed) {
		o.logger.Warn().
			Str("stream", o.cfg.Stream).
			Str("event", string(e.Type)).
			Err(err).
			Msg("xrelay: redis stream write failed")
	}
}

// Write appends one event record to the configured stream.
func (o *Observer) Write(ctx context.Context, e xrelay.Event) error {
	if o.closed.Load() {
		return ErrClosed
	}
	vals, err := NewRecord(e).values(o.codec)
	if err != nil {
		o.metrics.failed.Add(1)
		return err
	}

	args := &redis.XAddArgs{
		Stream: o.cfg.Stream,
		ID:     "*",
		Values: vals,
	}
	if o.cfg.MaxLenApprox > 0 {
		args.MaxLen = o.cfg.MaxLenApprox
		args.Approx = true
	}
	if err := o.client.XAdd(ctx, args).Err(); err != nil {
		o.metrics.failed.Add(1)
		return err
	}
	o.metrics.written.Add(1)
	return nil
}

// Read returns up to count records from the stream, oldest first.
func (o *Observer) Read(ctx context.Context, count int64) ([]Record, error) {
	entries, err := o.client.XRangeN(ctx, o.cfg.Stream, "-", "+", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(entries))
	for _, x := range entries {
		r, err := DecodeRecord(o.codec, x.Values)
		if err != nil {
			return nil, fmt.Errorf("redisstream: entry %s: %w", x.ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Stats returns current observer metrics.
func (o *Observer) Stats() Stats {
	return Stats{
		Written: o.metrics.written.Load(),
		Failed:  o.metrics.failed.Load(),
	}
}

// Close releases the Redis client. It is idempotent.
func (o *Observer) Close(_ context.Context) error {
	var err error
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		err = o.client.Close()
	})
	return err
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}
	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}
