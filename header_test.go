package ccfeatures

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGuardFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"src/config.h", "SRC_CONFIG_H_"},
		{"./config.h", "CONFIG_H_"},
		{"build/gen/probe-config.hpp", "BUILD_GEN_PROBE_CONFIG_HPP_"},
		{"/abs/config.h", "ABS_CONFIG_H_"},
		{"3rd/config.h", "CCFEATURES_3RD_CONFIG_H_"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := GuardFromPath(filepath.FromSlash(tt.path)); got != tt.want {
				t.Errorf("GuardFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestRenderHeader(t *testing.T) {
	resolved := &Resolution{
		Check:        "mutex",
		Selected:     1,
		alternatives: []Alternative{{Name: "std::mutex"}, {Name: "boost::mutex"}},
	}
	missing := &Resolution{Check: "vm", Selected: -1, alternatives: []Alternative{{Name: "VM_MAKE_TAG"}}}

	got := string(renderHeader("CONFIG_H_", []headerEntry{
		{fragment: "#define FIRST 1"},
		{resolution: resolved},
		{resolution: missing},
	}))

	want := `/* Generated by ccfeatures. DO NOT EDIT. */
#ifndef CONFIG_H_
#define CONFIG_H_

#define FIRST 1

/* mutex: boost::mutex */
#define HAVE_BOOST_MUTEX 1

#endif /* CONFIG_H_ */
`
	if got != want {
		t.Errorf("renderHeader mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderHeader_CommentText(t *testing.T) {
	r := &Resolution{
		Check:        "ptr*/cast",
		Selected:     0,
		alternatives: []Alternative{{Name: "a*/b\nc", Macro: "HAVE_OTHER"}},
	}
	got := string(renderHeader("CONFIG_H_", []headerEntry{{resolution: r}}))

	if !strings.Contains(got, "/* ptr* /cast: a* /b c */\n#define HAVE_OTHER 1\n") {
		t.Errorf("comment not escaped:\n%s", got)
	}
	for i, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "/*") && strings.Index(line, "*/") != len(line)-2 {
			t.Errorf("line %d closes its comment early: %q", i+1, line)
		}
	}
}

func TestRenderHeader_Empty(t *testing.T) {
	got := string(renderHeader("EMPTY_H_", nil))
	if !strings.HasPrefix(got, headerBanner+"#ifndef EMPTY_H_\n#define EMPTY_H_\n") {
		t.Errorf("unexpected prologue:\n%s", got)
	}
	if !strings.HasSuffix(got, "#endif /* EMPTY_H_ */\n") {
		t.Errorf("unexpected epilogue:\n%s", got)
	}
}

func TestWriteHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.h")
	content := []byte("#define X 1\n")

	written, err := writeHeader(path, content, false)
	if err != nil {
		t.Fatalf("writeHeader() error = %v", err)
	}
	if !written {
		t.Error("first write should report written")
	}

	written, err = writeHeader(path, content, false)
	if err != nil {
		t.Fatal(err)
	}
	if written {
		t.Error("identical content should not be rewritten")
	}

	written, err = writeHeader(path, content, true)
	if err != nil {
		t.Fatal(err)
	}
	if !written {
		t.Error("always should force a rewrite")
	}

	written, err = writeHeader(path, []byte("#define X 2\n"), false)
	if err != nil {
		t.Fatal(err)
	}
	if !written {
		t.Error("changed content should be rewritten")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "#define X 2\n" {
		t.Errorf("content = %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("temporary files left behind: %v", names)
	}
}

func TestWriteHeader_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := writeHeader(filepath.Join(blocker, "config.h"), []byte("x"), false)
	if !errors.Is(err, ErrHeaderWrite) {
		t.Fatalf("writeHeader() error = %v, want ErrHeaderWrite", err)
	}
	if !IsInfrastructure(err) {
		t.Error("header write failure should be infrastructure")
	}
}
