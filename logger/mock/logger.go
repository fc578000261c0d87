package mocklogger

import (
	"sync"

	"github.com/hugolhafner/kscan/logger"
)

var _ logger.Logger = (*MockLogger)(nil)

type LogEntry struct {
	Level   logger.LogLevel
	Message string
	KV      []any
}

// entries is shared between a MockLogger and the loggers derived from it with With.
type entries struct {
	mu   sync.Mutex
	list []LogEntry
}

type MockLogger struct {
	entries *entries
	args    []any
}

func New() *MockLogger {
	return &MockLogger{entries: &entries{}}
}

// Entries returns a snapshot of every entry logged so far.
func (m *MockLogger) Entries() []LogEntry {
	m.entries.mu.Lock()
	defer m.entries.mu.Unlock()

	out := make([]LogEntry, len(m.entries.list))
	copy(out, m.entries.list)
	return out
}

func (m *MockLogger) Log(level logger.LogLevel, msg string, kv ...any) {
	all := make([]any, 0, len(m.args)+len(kv))
	all = append(all, m.args...)
	all = append(all, kv...)

	m.entries.mu.Lock()
	defer m.entries.mu.Unlock()

	m.entries.list = append(
		m.entries.list, LogEntry{
			Level:   level,
			Message: msg,
			KV:      all,
		},
	)
}

func (m *MockLogger) Level() logger.LogLevel {
	return logger.DebugLevel
}

func (m *MockLogger) With(kv ...any) logger.Logger {
	args := make([]any, 0, len(m.args)+len(kv))
	args = append(args, m.args...)
	args = append(args, kv...)

	return &MockLogger{
		entries: m.entries,
		args:    args,
	}
}

func (m *MockLogger) Debug(msg string, kv ...any) {
	m.Log(logger.DebugLevel, msg, kv...)
}

func (m *MockLogger) Info(msg string, kv ...any) {
	m.Log(logger.InfoLevel, msg, kv...)
}

func (m *MockLogger) Warn(msg string, kv ...any) {
	m.Log(logger.WarnLevel, msg, kv...)
}

func (m *MockLogger) Error(msg string, kv ...any) {
	m.Log(logger.ErrorLevel, msg, kv...)
}
