package logger

import (
	"bytes"
	"strings"
	"testing"
)

func withBuffer(t *testing.T) *bytes.Buffer {
	t.Helper()
	origVerbose := Verbose()
	origWriter := Logger.Writer()
	t.Cleanup(func() {
		SetVerbose(origVerbose)
		SetOutput(origWriter)
	})
	var buf bytes.Buffer
	SetOutput(&buf)
	return &buf
}

func TestLogger(t *testing.T) {
	buf := withBuffer(t)
	SetVerbose(true)

	Debugf("test debug: %s", "message")
	if !strings.Contains(buf.String(), "[DEBUG] test debug: message") {
		t.Errorf("Expected debug message, got: %s", buf.String())
	}

	buf.Reset()
	SetVerbose(false)
	Debugf("should not appear")
	Infof("should not appear either")
	if buf.Len() > 0 {
		t.Errorf("Expected no output when verbose=false, got: %s", buf.String())
	}

	buf.Reset()
	Warnf("warn message")
	Errorf("error message")
	Todof("todo message")
	for _, want := range []string{"[WARN] warn message", "[ERROR] error message", "[TODO] todo message"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Expected %q even with verbose=false, got: %s", want, buf.String())
		}
	}
}
