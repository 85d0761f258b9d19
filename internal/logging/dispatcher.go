package logging

import "github.com/rs/zerolog"

// DispatcherLogger bridges the dispatcher's key-value logging calls onto a
// zerolog.Logger.
type DispatcherLogger struct {
	zl zerolog.Logger
}

// NewDispatcherLogger wraps a zerolog.Logger for use by the dispatcher.
func NewDispatcherLogger(zl zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{zl: zl}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	emit(l.zl.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	emit(l.zl.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	emit(l.zl.Error(), msg, keysAndValues)
}

// emit attaches the key-value pairs to the event and fires it. A trailing
// key with no value is dropped.
func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			ev = ev.Interface(key, kv[i+1])
		}
	}
	ev.Msg(msg)
}
