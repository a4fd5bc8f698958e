package ccfeatures

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// headerBanner opens every generated header.
const headerBanner = "/* Generated by ccfeatures. DO NOT EDIT. */\n"

// GuardFromPath derives an include guard from a header path
// ("src/config.h" becomes "SRC_CONFIG_H_").
func GuardFromPath(path string) string {
	p := filepath.ToSlash(filepath.Clean(path))
	p = strings.TrimPrefix(p, filepath.ToSlash(filepath.VolumeName(path)))
	p = strings.TrimLeft(p, "/.")

	var b strings.Builder
	for _, r := range strings.ToUpper(p) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	guard := b.String()
	if guard == "" || (guard[0] >= '0' && guard[0] <= '9') {
		guard = "CCFEATURES_" + guard
	}
	return guard + "_"
}

// headerEntry is either a resolved check or a raw macro fragment.
type headerEntry struct {
	resolution *Resolution
	fragment   string
}

// renderHeader renders entries in order. Unresolved checks emit nothing.
func renderHeader(guard string, entries []headerEntry) []byte {
	var b bytes.Buffer

	b.WriteString(headerBanner)
	fmt.Fprintf(&b, "#ifndef %s\n", guard)
	fmt.Fprintf(&b, "#define %s\n", guard)

	for _, e := range entries {
		if e.resolution != nil {
			if !e.resolution.Resolved() {
				continue
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "/* %s: %s */\n", commentText(e.resolution.Check), commentText(e.resolution.Name()))
			fmt.Fprintf(&b, "#define %s 1\n", e.resolution.Macro())
			continue
		}
		b.WriteString("\n")
		b.WriteString(e.fragment)
		if !strings.HasSuffix(e.fragment, "\n") {
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\n#endif /* %s */\n", guard)
	return b.Bytes()
}

var commentEscaper = strings.NewReplacer("*/", "* /", "\r\n", " ", "\n", " ", "\r", " ")

// commentText makes s safe inside a single-line block comment.
func commentText(s string) string {
	return commentEscaper.Replace(s)
}

// isFresh reports whether path already holds exactly content.
func isFresh(path string, content []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bytes.Equal(existing, content), nil
}

// writeHeader writes content to path unless the file is already
// byte-identical and always is false. It reports whether a write happened.
func writeHeader(path string, content []byte, always bool) (bool, error) {
	if !always {
		fresh, err := isFresh(path, content)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrHeaderWrite, err)
		}
		if fresh {
			return false, nil
		}
	}
	if err := writeFileAtomic(path, content); err != nil {
		return false, fmt.Errorf("%w: %w", ErrHeaderWrite, err)
	}
	return true, nil
}

// writeFileAtomic renders to a temporary file next to path and renames it
// into place, so readers see either the old or the new header. An existing
// header keeps its permission bits.
func writeFileAtomic(path string, content []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create header directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp header: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp header: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp header: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp header: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp header: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename header: %w", err)
	}
	committed = true
	return nil
}
