package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New(false)
	if err != nil {
		t.Fatalf("New(false) failed: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("production logger should not log at debug level")
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("production logger should log at info level")
	}
}

func TestNew_Debug(t *testing.T) {
	log, err := New(true)
	if err != nil {
		t.Fatalf("New(true) failed: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger should log at debug level")
	}
}

func TestMust(t *testing.T) {
	if Must(false) == nil {
		t.Error("Must returned nil")
	}
}
