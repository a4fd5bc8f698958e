package ccfeatures

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Flavor identifies the command-line dialect of a compiler driver.
type Flavor int

const (
	// FlavorGCC covers gcc, clang and compatible drivers.
	FlavorGCC Flavor = iota
	// FlavorMSVC covers cl.exe.
	FlavorMSVC
)

var flavorNames = map[Flavor]string{
	FlavorGCC:  "gcc",
	FlavorMSVC: "msvc",
}

func (f Flavor) String() string {
	if name, ok := flavorNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Flavor(%d)", f)
}

// FlavorIdentifiers maps each flavor to its accepted names.
func FlavorIdentifiers() map[Flavor][]string {
	return map[Flavor][]string{
		FlavorGCC:  {"gcc", "clang"},
		FlavorMSVC: {"msvc", "cl"},
	}
}

// Language is the source language probes are written in.
type Language int

const (
	// LanguageCXX compiles probes as C++.
	LanguageCXX Language = iota
	// LanguageC compiles probes as C.
	LanguageC
)

var languageNames = map[Language]string{
	LanguageCXX: "c++",
	LanguageC:   "c",
}

func (l Language) String() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Language(%d)", l)
}

// LanguageIdentifiers maps each language to its accepted names.
func LanguageIdentifiers() map[Language][]string {
	return map[Language][]string{
		LanguageCXX: {"c++", "cxx", "cpp"},
		LanguageC:   {"c"},
	}
}

// Extension returns the probe source file extension.
func (l Language) Extension() string {
	if l == LanguageC {
		return ".c"
	}
	return ".cc"
}

func (l Language) gccName() string {
	if l == LanguageC {
		return "c"
	}
	return "c++"
}

func (l Language) msvcSwitch() string {
	if l == LanguageC {
		return "/Tc"
	}
	return "/Tp"
}

// Toolchain is an already configured compiler and linker.
// It implements [Prober] by shelling out to the compiler.
type Toolchain struct {
	// Compiler is the driver executable (name on PATH or absolute path).
	Compiler string
	Flavor   Flavor
	Language Language
	// Flags are passed to every invocation before the generated ones.
	Flags       []string
	IncludeDirs []string
	LibraryDirs []string
	// Timeout bounds each probe. Zero means DefaultProbeTimeout.
	Timeout time.Duration
	// ScratchDir is the parent of per-probe directories. Empty means os.TempDir.
	ScratchDir string
}

var msvcBanner = regexp.MustCompile(`Version\s+(\d+(?:\.\d+){0,3})`)

// Version detects the compiler version.
func (tc *Toolchain) Version(ctx context.Context) (*semver.Version, error) {
	var out bytes.Buffer
	var cmd *exec.Cmd
	if tc.Flavor == FlavorMSVC {
		// cl prints its banner on stderr when run without inputs.
		cmd = exec.CommandContext(ctx, tc.Compiler)
		cmd.Stderr = &out
	} else {
		cmd = exec.CommandContext(ctx, tc.Compiler, "-dumpversion")
		cmd.Stdout = &out
	}
	configureProcess(cmd)
	runErr := cmd.Run()

	raw := strings.TrimSpace(out.String())
	if tc.Flavor == FlavorMSVC {
		m := msvcBanner.FindStringSubmatch(raw)
		if m == nil {
			return nil, fmt.Errorf("%w: no version in %s banner", ErrCompilerNotFound, tc.Compiler)
		}
		raw = m[1]
		// cl exits non-zero without inputs.
		runErr = nil
	}
	if runErr != nil {
		return nil, fmt.Errorf("%w: %s -dumpversion: %w", ErrCompilerNotFound, tc.Compiler, runErr)
	}
	v, err := parseCompilerVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s version %q: %w", tc.Compiler, raw, err)
	}
	return v, nil
}

// parseCompilerVersion accepts versions with more than three components
// (MSVC build numbers) by keeping the first three.
func parseCompilerVersion(raw string) (*semver.Version, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return semver.NewVersion(strings.Join(parts, "."))
}

// RequireVersion rejects the toolchain when its version does not satisfy
// constraint. An empty constraint accepts any version.
func (tc *Toolchain) RequireVersion(ctx context.Context, constraint string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("parse version constraint %q: %w", constraint, err)
	}
	v, err := tc.Version(ctx)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: %s %s does not satisfy %q", ErrToolchainVersion, tc.Compiler, v, constraint)
	}
	return nil
}
