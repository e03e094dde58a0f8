package logutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "********"},
		{"short", "********"},
		{"sk-1234567890abcd", "sk-1...abcd"},
	}
	for _, tt := range tests {
		if got := RedactKey(tt.in); got != tt.want {
			t.Errorf("RedactKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("a\nb\tc\x01"); got != "a\\nb\\tc?" {
		t.Fatalf("unexpected preview %q", got)
	}

	long := strings.Repeat("é", previewLen+5)
	got := Preview(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != previewLen {
		t.Fatalf("expected %d runes, got %d", previewLen, n)
	}
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	for i, name := range []string{path, archiveName(path, 1), archiveName(path, 3)} {
		if err := os.WriteFile(name, []byte{byte('a' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rotate(path)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected base log to be moved, stat err=%v", err)
	}
	data, err := os.ReadFile(archiveName(path, 1))
	if err != nil || string(data) != "a" {
		t.Fatalf("expected .1 to hold previous base, got %q err=%v", data, err)
	}
	data, err = os.ReadFile(archiveName(path, 2))
	if err != nil || string(data) != "b" {
		t.Fatalf("expected .2 to hold previous .1, got %q err=%v", data, err)
	}
	if _, err := os.Stat(archiveName(path, 3)); !os.IsNotExist(err) {
		t.Fatalf("expected oldest archive dropped, stat err=%v", err)
	}
}

func TestRotatingWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := openRotating(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	_ = w.Close()

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello\n" {
		t.Fatalf("unexpected content %q err=%v", data, err)
	}
}
