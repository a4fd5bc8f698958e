package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_DefaultLevelIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Infow("check selected", "check", "mutex")
	logger.Warnw("optional check unresolved", "check", "vm-tag")

	output := buf.String()
	if strings.Contains(output, "INFO") || strings.Contains(output, "check selected") || strings.Contains(output, "mutex") {
		t.Errorf("info message should be filtered, got: %s", output)
	}
	if !strings.Contains(output, "optional check unresolved") {
		t.Errorf("expected warn message, got: %s", output)
	}
	if !strings.Contains(output, "WARN") {
		t.Errorf("expected capitalized level, got: %s", output)
	}
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	logger.Debugw("probe", "alternative", "std::mutex")

	output := buf.String()
	if !strings.Contains(output, "probe") {
		t.Errorf("expected debug message, got: %s", output)
	}
	if !strings.Contains(output, "std::mutex") {
		t.Errorf("expected field value, got: %s", output)
	}
	if !strings.Contains(output, "ccfeatures") {
		t.Errorf("expected logger name, got: %s", output)
	}
}

func TestNop(t *testing.T) {
	// Must not panic.
	Nop().Errorw("discarded", "key", "value")
}
