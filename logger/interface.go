// Package logger defines the structured logging contract used by the API client
// and its zerolog implementation.
package logger

import (
	"context"
	"time"
)

// Logger creates leveled events. A library never exits the process, so there is no
// fatal level.
type Logger interface {
	Info() LogEvent
	Error() LogEvent
	Debug() LogEvent
	Warn() LogEvent
	// WithContext prefers a zerolog logger stored in ctx, for request-scoped fields
	WithContext(ctx context.Context) Logger
	WithFields(fields map[string]any) Logger
}

// LogEvent accumulates fields and is sent by Msg. Str and Interface values under
// sensitive keys are masked.
type LogEvent interface {
	Msg(msg string)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
	Bytes(key string, val []byte) LogEvent
}
