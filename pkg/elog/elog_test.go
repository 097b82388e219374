package elog

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(nopCloser{&buf})
	if err := l.SetLevel(WARN); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	l.Infof("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}
	l.Warnf("should appear %d", 1)
	if !strings.Contains(buf.String(), "should appear 1") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestLevelFromString(t *testing.T) {
	if l, err := LevelFromString("error"); err != nil || l != ERROR {
		t.Fatalf("LevelFromString(error) = %v, %v", l, err)
	}
	if _, err := LevelFromString("bogus"); err == nil {
		t.Fatalf("expected error for bogus level")
	}
}

func TestAddWriterAfterClose(t *testing.T) {
	l := NewDiscardLogger()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.AddWriter(nopCloser{&bytes.Buffer{}}); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}
