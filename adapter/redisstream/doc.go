// Package redisstream publishes xrelay lifecycle events to a Redis stream.
//
// Each event becomes one XADD entry with flat fields (type, run_id, routine,
// index, source, destination, at, duration_ns, error) plus a codec-encoded
// "record". Message payloads are never written.
//
// Config keys for ConfigFromMap:
//   - addr: "host:port" (default "127.0.0.1:6379")
//   - username, password, db
//   - tls, tls_server_name
//   - stream: stream key (default "xrelay:events")
//   - max_len_approx: MAXLEN ~ trimming, 0 disables (default 100000)
//   - write_timeout: per-XADD timeout (default 2s)
//   - codec: xrelay codec name (default "json")
//
// Example:
//
//	obs, opt := redisstream.Use(redisstream.ConfigFromMap(map[string]any{
//	    "addr":   "localhost:6379",
//	    "stream": "payments:relay",
//	}))
//	defer obs.Close(context.Background())
//	mgr := xrelay.NewManager(opt, xrelay.WithObserverPool(4, 1024))
package redisstream
