package redisstream

// Field constants (avoid typos/allocs)
const (
	fieldType        = "type"
	fieldRunID       = "run_id"
	fieldRoutine     = "routine"
	fieldIndex       = "index"
	fieldSource      = "source"
	fieldDestination = "destination"
	fieldAt          = "at"          // int64 ns
	fieldDuration    = "duration_ns" // int64 ns
	fieldError       = "error"
	fieldCodec       = "codec"
	fieldRecord      = "record" // codec-encoded Record
)
