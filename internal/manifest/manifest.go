// Package manifest loads check manifests: the declarative list of
// capability checks and raw macro fragments a project configures with.
//
// A manifest is TOML or YAML, chosen by file extension. Checks and macros
// live in a single ordered entry list so that the generated header keeps
// their registration order.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/thediveo/enumflag/v2"
	"gopkg.in/yaml.v3"

	"github.com/leodido/ccfeatures"
)

// ErrUnknownFormat is returned for manifest files with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown manifest format")

// Format is a manifest encoding.
type Format int

const (
	// FormatTOML decodes with BurntSushi/toml.
	FormatTOML Format = iota
	// FormatYAML decodes with gopkg.in/yaml.v3.
	FormatYAML
)

// Entry kinds besides the check kinds.
const kindMacro = "macro"

// File is a decoded manifest.
type File struct {
	// Header is the path of the generated header, relative to the manifest.
	Header      string    `toml:"header" yaml:"header"`
	AlwaysBuild bool      `toml:"always_build" yaml:"always_build"`
	Guard       string    `toml:"guard" yaml:"guard"`
	Toolchain   Toolchain `toml:"toolchain" yaml:"toolchain"`
	Entries     []Entry   `toml:"entry" yaml:"entries"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// Toolchain describes the compiler the orchestration layer configured.
type Toolchain struct {
	Compiler    string   `toml:"compiler" yaml:"compiler"`
	Flavor      string   `toml:"flavor" yaml:"flavor"`
	Language    string   `toml:"language" yaml:"language"`
	Flags       []string `toml:"flags" yaml:"flags"`
	IncludeDirs []string `toml:"include_dirs" yaml:"include_dirs"`
	LibraryDirs []string `toml:"library_dirs" yaml:"library_dirs"`
	Timeout     string   `toml:"timeout" yaml:"timeout"`
	MinVersion  string   `toml:"min_version" yaml:"min_version"`
}

// Entry is either a check (kind header, struct or library) or a raw
// macro fragment (kind macro).
type Entry struct {
	Kind     string `toml:"kind" yaml:"kind"`
	Name     string `toml:"name" yaml:"name"`
	Required bool   `toml:"required" yaml:"required"`
	Message  string `toml:"message" yaml:"message"`
	// Headers lists header-name alternatives for header checks.
	Headers      []string      `toml:"headers" yaml:"headers"`
	Alternatives []Alternative `toml:"alternative" yaml:"alternatives"`
	// Code is the fragment text for macro entries.
	Code string `toml:"code" yaml:"code"`
}

// Alternative mirrors [ccfeatures.Alternative].
type Alternative struct {
	Name      string   `toml:"name" yaml:"name"`
	Headers   []string `toml:"headers" yaml:"headers"`
	Code      string   `toml:"code" yaml:"code"`
	Function  string   `toml:"function" yaml:"function"`
	Struct    string   `toml:"struct" yaml:"struct"`
	Libraries []string `toml:"libraries" yaml:"libraries"`
	Macro     string   `toml:"macro" yaml:"macro"`
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// Load reads and validates the manifest at path.
func Load(path string) (*File, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	f, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// Decode parses and validates a manifest. Unknown keys are rejected.
// Relative paths resolve against the current directory.
func Decode(r io.Reader, format Format) (*File, error) {
	var f File
	switch format {
	case FormatTOML:
		meta, err := toml.NewDecoder(r).Decode(&f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, ErrUnknownFormat
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	f.dir = "."
	return &f, nil
}

func (f *File) validate() error {
	if strings.TrimSpace(f.Header) == "" {
		return errors.New("missing header path")
	}
	if f.Guard != "" && !ccfeatures.IsIdentifier(f.Guard) {
		return fmt.Errorf("%w: %q", ccfeatures.ErrInvalidGuard, f.Guard)
	}
	for i, e := range f.Entries {
		kind := strings.ToLower(strings.TrimSpace(e.Kind))
		if kind == kindMacro {
			if len(e.Headers) > 0 || len(e.Alternatives) > 0 {
				return fmt.Errorf("entry %d: macro entries take only code", i)
			}
			continue
		}
		k, err := ccfeatures.ParseKind(kind)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Code != "" {
			return fmt.Errorf("entry %d: code belongs to an alternative, not to a %s check", i, k)
		}
		if k == ccfeatures.KindHeader && len(e.Alternatives) > 0 && len(e.Headers) > 0 {
			return fmt.Errorf("entry %d: set either headers or alternatives", i)
		}
	}
	return nil
}

// HeaderPath returns the header path resolved against the manifest directory.
func (f *File) HeaderPath() string {
	return f.resolve(f.Header)
}

// IncludeGuard returns the configured guard, or one derived from the
// header path as written in the manifest.
func (f *File) IncludeGuard() string {
	if f.Guard != "" {
		return f.Guard
	}
	return ccfeatures.GuardFromPath(f.Header)
}

func (f *File) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.dir, filepath.FromSlash(p))
}

// Apply registers every entry on b, in manifest order.
func (f *File) Apply(b *ccfeatures.Builder) error {
	for i, e := range f.Entries {
		if err := f.applyEntry(b, e); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

func (f *File) applyEntry(b *ccfeatures.Builder, e Entry) error {
	c, isCheck, err := e.check()
	if err != nil {
		return err
	}
	if !isCheck {
		return b.AddRawMacro(e.Code)
	}
	return b.Register(c)
}

// Checks returns the checks declared by the manifest, without macros.
func (f *File) Checks() ([]ccfeatures.Check, error) {
	var checks []ccfeatures.Check
	for i, e := range f.Entries {
		c, isCheck, err := e.check()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if !isCheck {
			continue
		}
		if c.Name == "" && len(c.Alternatives) > 0 {
			c.Name = c.Alternatives[0].Name
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// check converts e into a check. It reports false for macro entries.
func (e Entry) check() (ccfeatures.Check, bool, error) {
	kind := strings.ToLower(strings.TrimSpace(e.Kind))
	if kind == kindMacro {
		return ccfeatures.Check{}, false, nil
	}
	k, err := ccfeatures.ParseKind(kind)
	if err != nil {
		return ccfeatures.Check{}, false, err
	}
	alts := e.ccAlternatives()
	if k == ccfeatures.KindHeader && len(e.Headers) > 0 {
		alts = ccfeatures.HeaderAlternatives(e.Headers...)
	}
	return ccfeatures.Check{
		Name:         e.Name,
		Kind:         k,
		Required:     e.Required,
		Alternatives: alts,
		Message:      e.Message,
	}, true, nil
}

func (e Entry) ccAlternatives() []ccfeatures.Alternative {
	alts := make([]ccfeatures.Alternative, 0, len(e.Alternatives))
	for _, a := range e.Alternatives {
		alts = append(alts, ccfeatures.Alternative{
			Name:      a.Name,
			Headers:   a.Headers,
			Code:      a.Code,
			Function:  a.Function,
			Struct:    a.Struct,
			Libraries: a.Libraries,
			Macro:     a.Macro,
		})
	}
	return alts
}

// NewToolchain builds the toolchain described by the manifest.
// Relative include and library directories resolve against the manifest.
func (f *File) NewToolchain() (*ccfeatures.Toolchain, error) {
	t := f.Toolchain
	tc := &ccfeatures.Toolchain{
		Compiler: t.Compiler,
		Flags:    append([]string(nil), t.Flags...),
	}
	for _, d := range t.IncludeDirs {
		tc.IncludeDirs = append(tc.IncludeDirs, f.resolve(d))
	}
	for _, d := range t.LibraryDirs {
		tc.LibraryDirs = append(tc.LibraryDirs, f.resolve(d))
	}

	if t.Flavor != "" {
		flavor, err := ParseFlavor(t.Flavor)
		if err != nil {
			return nil, err
		}
		tc.Flavor = flavor
	}
	if t.Language != "" {
		lang, err := ParseLanguage(t.Language)
		if err != nil {
			return nil, err
		}
		tc.Language = lang
	}
	if t.Timeout != "" {
		d, err := time.ParseDuration(t.Timeout)
		if err != nil {
			return nil, fmt.Errorf("toolchain timeout: %w", err)
		}
		tc.Timeout = d
	}
	return tc, nil
}

// ParseFlavor resolves a flavor name (case-insensitive).
func ParseFlavor(s string) (ccfeatures.Flavor, error) {
	f, err := parseEnum(s, "flavor", ccfeatures.FlavorIdentifiers())
	if err != nil {
		return 0, fmt.Errorf("unknown compiler flavor %q", s)
	}
	return f, nil
}

// ParseLanguage resolves a language name (case-insensitive).
func ParseLanguage(s string) (ccfeatures.Language, error) {
	l, err := parseEnum(s, "language", ccfeatures.LanguageIdentifiers())
	if err != nil {
		return 0, fmt.Errorf("unknown language %q", s)
	}
	return l, nil
}

func parseEnum[E ~int](s, typename string, ids map[E][]string) (E, error) {
	var v E
	err := enumflag.New(&v, typename, ids, enumflag.EnumCaseInsensitive).Set(strings.TrimSpace(s))
	return v, err
}
