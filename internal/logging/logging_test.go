package logging

import (
	"testing"
)

func TestLogLevelOrdering(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("log levels should be ascending: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

// The level is latched by sync.Once, so GetLevel can only be exercised once
// per process; the functions are still checked for panics at every level.
func TestLoggingFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"Debug", func() { Debug("test message") }},
		{"Info", func() { Info("test message") }},
		{"Warn", func() { Warn("test message") }},
		{"Error", func() { Error("test message") }},
		{"Debug with args", func() { Debug("test %s %d", "message", 123) }},
		{"Info with args", func() { Info("test %s %d", "message", 123) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn()
		})
	}
}
