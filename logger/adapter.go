package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// event wraps a zerolog event. zerolog returns a nil event for disabled levels and
// every method on it is a no-op, so event never checks the level itself.
type event struct {
	z      *zerolog.Event
	filter *SensitiveDataFilter
}

func (e *event) Msg(msg string) { e.z.Msg(msg) }

func (e *event) Err(err error) LogEvent { return e.next(e.z.Err(err)) }

func (e *event) Str(key, value string) LogEvent {
	if e.filter != nil {
		value = e.filter.FilterString(key, value)
	}
	return e.next(e.z.Str(key, value))
}

func (e *event) Int(key string, value int) LogEvent { return e.next(e.z.Int(key, value)) }

func (e *event) Int64(key string, value int64) LogEvent { return e.next(e.z.Int64(key, value)) }

func (e *event) Dur(key string, d time.Duration) LogEvent { return e.next(e.z.Dur(key, d)) }

// Interface masks sensitive keys inside maps and http.Header values
func (e *event) Interface(key string, i any) LogEvent {
	if e.filter != nil {
		i = e.filter.FilterValue(key, i)
	}
	return e.next(e.z.Interface(key, i))
}

// Bytes writes val as a string field. The key filter does not see inside val, so callers
// pass payloads that are already redacted.
func (e *event) Bytes(key string, val []byte) LogEvent { return e.next(e.z.Bytes(key, val)) }

func (e *event) next(z *zerolog.Event) LogEvent {
	e.z = z
	return e
}
