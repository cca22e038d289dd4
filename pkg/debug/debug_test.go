package debug

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetEnabled(true)
	SetOutput(&buf)
	t.Cleanup(func() {
		SetEnabled(false)
	})
	return &buf
}

func TestLogWhenEnabled(t *testing.T) {
	buf := capture(t)

	Log("derived %d instructions", 3)
	LogTiming("layout", 5*time.Millisecond)
	LogIf(false, "hidden")
	LogIf(true, "shown")
	Dump("seg", struct{ Inst int }{2})

	out := buf.String()
	for _, want := range []string{"[PIPETRACE_DEBUG]", "derived 3 instructions", "layout took 5ms", "shown", "Inst:2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Error("LogIf(false) should not log")
	}
}

func TestLogWhenDisabled(t *testing.T) {
	buf := capture(t)
	SetEnabled(false)

	Log("nothing")
	LogEnterExit("noop")()
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}
}

func TestLogEnterExit(t *testing.T) {
	buf := capture(t)

	LogEnterExit("render")()
	out := buf.String()
	if !strings.Contains(out, "-> render") || !strings.Contains(out, "<- render") {
		t.Errorf("enter/exit lines missing:\n%s", out)
	}
}
