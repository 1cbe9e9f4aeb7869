package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := WriteFileAtomic(path, []byte("hello world"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %o", info.Mode().Perm())
	}
}

func TestWriteAtomicFailureLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Fatalf("target modified: %q", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleanup, found %d entries", len(entries))
	}
}

func TestExtensionHelpers(t *testing.T) {
	tests := []struct {
		name  string
		ext   string
		match bool
	}{
		{"a.webp", "webp", true},
		{"B.WEBP", "webp", true},
		{"c.WebP", ".WEBP", true},
		{"d.png", "webp", false},
		{"webp", "webp", false},
		{"e.tar.webp", "webp", true},
		{"f.webp", "", false},
		{".webp", "webp", false},
		{"/tmp/x/.webp", "webp", false},
		{"..webp", "webp", true},
		{".hidden.webp", "webp", true},
	}
	for _, tc := range tests {
		if got := MatchesExt(tc.name, tc.ext); got != tc.match {
			t.Errorf("MatchesExt(%q, %q) = %v, want %v", tc.name, tc.ext, got, tc.match)
		}
	}

	if got := ReplaceExt("/tmp/x/photo.WEBP", "png"); got != "/tmp/x/photo.png" {
		t.Fatalf("ReplaceExt = %q", got)
	}
	if got := TrimExt("/tmp/clip.mov"); got != "/tmp/clip" {
		t.Fatalf("TrimExt = %q", got)
	}
	if got := Ext("clip.MOV"); got != "mov" {
		t.Fatalf("Ext = %q", got)
	}
}
