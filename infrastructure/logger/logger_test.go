package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

type bufferCloser struct {
	sync.Mutex
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	return b.Buffer.Write(p)
}

func (b *bufferCloser) Close() error {
	b.Lock()
	defer b.Unlock()
	b.closed = true
	return nil
}

func TestLoggerLevels(t *testing.T) {
	backend := NewBackendWithFlags(0)
	all := &bufferCloser{}
	warnings := &bufferCloser{}
	if err := backend.AddLogWriter(all, LevelTrace); err != nil {
		t.Fatalf("TestLoggerLevels: AddLogWriter: %s", err)
	}
	if err := backend.AddLogWriter(warnings, LevelWarn); err != nil {
		t.Fatalf("TestLoggerLevels: AddLogWriter: %s", err)
	}
	if err := backend.Run(); err != nil {
		t.Fatalf("TestLoggerLevels: Run: %s", err)
	}
	if err := backend.AddLogWriter(&bufferCloser{}, LevelInfo); err == nil {
		t.Fatalf("TestLoggerLevels: expected an error adding a writer to a running backend")
	}

	log := backend.Logger(padTag("TST"))
	log.Infof("silent %d", 1)
	log.SetLevel(LevelDebug)
	log.Tracef("filtered %d", 2)
	log.Debugf("debug %d", 3)
	log.Warn("warn", 4)
	backend.Close()

	got := all.String()
	if strings.Contains(got, "silent") || strings.Contains(got, "filtered") {
		t.Fatalf("TestLoggerLevels: filtered entries were written: %q", got)
	}
	if !strings.Contains(got, "[DBG] TST : debug 3") {
		t.Fatalf("TestLoggerLevels: missing debug entry in %q", got)
	}
	if strings.Contains(warnings.String(), "debug 3") || !strings.Contains(warnings.String(), "[WRN] TST : warn 4") {
		t.Fatalf("TestLoggerLevels: unexpected warnings output %q", warnings.String())
	}
	if !all.closed || !warnings.closed {
		t.Fatalf("TestLoggerLevels: writers were not closed")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in    string
		level Level
		ok    bool
	}{
		{"trace", LevelTrace, true},
		{"DBG", LevelDebug, true},
		{"Warn", LevelWarn, true},
		{"off", LevelOff, true},
		{"verbose", LevelInfo, false},
	}
	for _, test := range tests {
		level, ok := LevelFromString(test.in)
		if level != test.level || ok != test.ok {
			t.Errorf("TestLevelFromString: %q: got (%s, %t), want (%s, %t)",
				test.in, level, ok, test.level, test.ok)
		}
	}
}

func TestParseAndSetLogLevels(t *testing.T) {
	log := RegisterSubSystem("TSTP")
	if err := ParseAndSetLogLevels("TSTP=trace"); err != nil {
		t.Fatalf("TestParseAndSetLogLevels: %s", err)
	}
	if log.Level() != LevelTrace {
		t.Fatalf("TestParseAndSetLogLevels: got level %s", log.Level())
	}
	if err := ParseAndSetLogLevels("NOPE=trace"); err == nil {
		t.Fatalf("TestParseAndSetLogLevels: expected an error for an unknown subsystem")
	}
	if err := ParseAndSetLogLevels("TSTP"); err == nil {
		t.Fatalf("TestParseAndSetLogLevels: expected an error for a bad level")
	}
}
