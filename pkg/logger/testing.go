package logger

import (
	"fmt"
	"sort"
	"testing"
)

// testLogger routes log output through t.Logf so it shows up attached to the
// failing test, fields included.
type testLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

// NewTestLogger creates a logger for use in tests.
func NewTestLogger(t *testing.T) Logger {
	return &testLogger{t: t}
}

func (l *testLogger) logf(level, msg string) {
	if l.t == nil {
		return
	}
	l.t.Helper()
	if len(l.fields) == 0 {
		l.t.Logf("%s %s", level, msg)
		return
	}

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	line := fmt.Sprintf("%s %s", level, msg)
	for _, k := range keys {
		line += fmt.Sprintf(" %s=%v", k, l.fields[k])
	}
	l.t.Log(line)
}

func (l *testLogger) Debug(msg string) { l.logf("DBG", msg) }
func (l *testLogger) Info(msg string)  { l.logf("INF", msg) }
func (l *testLogger) Warn(msg string)  { l.logf("WRN", msg) }
func (l *testLogger) Error(msg string) { l.logf("ERR", msg) }
func (l *testLogger) Fatal(msg string) { l.logf("FTL", msg) }

func (l *testLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *testLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &testLogger{t: l.t, fields: merged}
}
