package mocklogger

import (
	"testing"

	"github.com/hugolhafner/kscan/logger"
)

// AssertLogged verifies that an entry with the given level and message was logged.
func (m *MockLogger) AssertLogged(tb testing.TB, level logger.LogLevel, message string) {
	tb.Helper()

	for _, entry := range m.Entries() {
		if entry.Level == level && entry.Message == message {
			return
		}
	}

	tb.Errorf("expected log with level '%s' and message '%s' to be called", level.String(), message)
}

// AssertLoggedWith verifies that an entry with the given level and message carried key=value.
func (m *MockLogger) AssertLoggedWith(tb testing.TB, level logger.LogLevel, message string, key string, value any) {
	tb.Helper()

	for _, entry := range m.Entries() {
		if entry.Level != level || entry.Message != message {
			continue
		}

		for i := 0; i+1 < len(entry.KV); i += 2 {
			if entry.KV[i] == key && entry.KV[i+1] == value {
				return
			}
		}
	}

	tb.Errorf(
		"expected log with level '%s' and message '%s' carrying %s=%v to be called",
		level.String(), message, key, value,
	)
}

// AssertNotLoggedAtLevel verifies that nothing was logged at level.
func (m *MockLogger) AssertNotLoggedAtLevel(tb testing.TB, level logger.LogLevel) {
	tb.Helper()

	for _, entry := range m.Entries() {
		if entry.Level == level {
			tb.Errorf("expected no log at level '%s', got %q", level.String(), entry.Message)
			return
		}
	}
}
