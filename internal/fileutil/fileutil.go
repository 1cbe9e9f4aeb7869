// Package fileutil holds small filesystem helpers shared by the converters,
// the settings store, and the transcoder.
package fileutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteAtomic streams the output of write into a temporary file next to path
// and renames it into place once write and the flush succeed. On any failure
// the temporary file is removed and path is left untouched.
func WriteAtomic(path string, mode os.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	buffered := bufio.NewWriter(tmp)
	if err := write(buffered); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	committed = true
	return nil
}

// WriteFileAtomic writes data to path through WriteAtomic.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	return WriteAtomic(path, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Ext returns the lower-cased extension of name without the leading dot. A
// dotfile such as ".webp" has no extension.
func Ext(name string) string {
	base := filepath.Base(name)
	if strings.LastIndexByte(base, '.') <= 0 {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
}

// MatchesExt reports whether name's extension equals ext, ignoring case and a
// leading dot on ext. Names without an extension never match.
func MatchesExt(name, ext string) bool {
	want := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if want == "" {
		return false
	}
	return Ext(name) == want
}

// ReplaceExt swaps the extension of path for ext (given without the dot).
func ReplaceExt(path, ext string) string {
	return TrimExt(path) + "." + strings.TrimPrefix(ext, ".")
}

// TrimExt returns path without its final extension.
func TrimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
