package ccfeatures

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Prober compiles a single alternative against a toolchain.
//
// A probe that merely fails to compile is reported as
// ProbeResult{Supported: false} with a nil Error.
type Prober interface {
	Probe(ctx context.Context, kind Kind, alt Alternative) ProbeResult
}

// ProberFunc adapts a function to the [Prober] interface.
type ProberFunc func(ctx context.Context, kind Kind, alt Alternative) ProbeResult

// Probe calls f(ctx, kind, alt).
func (f ProberFunc) Probe(ctx context.Context, kind Kind, alt Alternative) ProbeResult {
	return f(ctx, kind, alt)
}

// DefaultProbeTimeout bounds a single compiler invocation.
const DefaultProbeTimeout = 30 * time.Second

// Probe writes the probe source for alt into a private scratch directory,
// runs the compiler on it and removes the directory before returning.
func (tc *Toolchain) Probe(ctx context.Context, kind Kind, alt Alternative) ProbeResult {
	dir, err := os.MkdirTemp(tc.ScratchDir, "ccfeatures-probe-*")
	if err != nil {
		return ProbeResult{Error: fmt.Errorf("%w: %w", ErrScratchDir, err)}
	}
	defer os.RemoveAll(dir)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	run := tc.rooted()

	src := filepath.Join(dir, "probe"+tc.Language.Extension())
	if err := os.WriteFile(src, []byte(ProbeSource(alt)), 0o644); err != nil {
		return ProbeResult{Error: fmt.Errorf("%w: %w", ErrScratchDir, err)}
	}

	link := kind == KindLibrary
	out := filepath.Join(dir, "probe"+tc.outputExtension(link))
	args := run.Args(src, out, link, alt.Libraries)

	timeout := tc.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var output bytes.Buffer
	cmd := exec.CommandContext(probeCtx, run.Compiler, args...)
	cmd.Dir = dir
	cmd.Stdout = &output
	cmd.Stderr = &output
	configureProcess(cmd)

	start := time.Now()
	err = cmd.Run()
	res := ProbeResult{Output: output.String(), Elapsed: time.Since(start)}

	switch {
	case err == nil:
		res.Supported = true
	case ctx.Err() != nil:
		res.Error = ctx.Err()
	case errors.Is(probeCtx.Err(), context.DeadlineExceeded):
		res.Error = fmt.Errorf("%w after %s", ErrProbeTimeout, timeout)
	case isExitError(err):
		// The feature is absent.
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		res.Error = fmt.Errorf("%w: %s: %w", ErrCompilerNotFound, tc.Compiler, err)
	default:
		res.Error = fmt.Errorf("run %s: %w", tc.Compiler, err)
	}
	return res
}

// rooted returns a copy of tc whose compiler path and search paths stay
// valid when the compiler runs inside the scratch directory.
func (tc *Toolchain) rooted() *Toolchain {
	c := *tc
	if strings.ContainsRune(tc.Compiler, filepath.Separator) || strings.ContainsRune(tc.Compiler, '/') {
		if abs, err := filepath.Abs(tc.Compiler); err == nil {
			c.Compiler = abs
		}
	}
	c.IncludeDirs = absolutePaths(tc.IncludeDirs)
	c.LibraryDirs = absolutePaths(tc.LibraryDirs)
	return &c
}

func absolutePaths(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		out = append(out, d)
	}
	return out
}

func isExitError(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}

// Validate checks that the compiler can be resolved.
func (tc *Toolchain) Validate() error {
	if strings.TrimSpace(tc.Compiler) == "" {
		return fmt.Errorf("%w: no compiler configured", ErrCompilerNotFound)
	}
	if _, err := exec.LookPath(tc.Compiler); err != nil {
		return fmt.Errorf("%w: %w", ErrCompilerNotFound, err)
	}
	if tc.ScratchDir != "" {
		info, err := os.Stat(tc.ScratchDir)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrScratchDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrScratchDir, tc.ScratchDir)
		}
	}
	return nil
}

// Args returns the compiler arguments used to compile src into out.
// When link is true the probe is linked against libs.
func (tc *Toolchain) Args(src, out string, link bool, libs []string) []string {
	if tc.Flavor == FlavorMSVC {
		return tc.msvcArgs(src, out, link, libs)
	}
	return tc.gccArgs(src, out, link, libs)
}

func (tc *Toolchain) gccArgs(src, out string, link bool, libs []string) []string {
	args := append([]string{}, tc.Flags...)
	args = append(args, "-O0", "-w")
	for _, dir := range tc.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	args = append(args, "-x", tc.Language.gccName())
	if !link {
		return append(args, "-c", src, "-x", "none", "-o", out)
	}
	args = append(args, src, "-x", "none", "-o", out)
	for _, dir := range tc.LibraryDirs {
		args = append(args, "-L"+dir)
	}
	for _, lib := range libs {
		args = append(args, gccLibrary(lib))
	}
	return args
}

func gccLibrary(lib string) string {
	if strings.HasPrefix(lib, "-") {
		return lib
	}
	switch filepath.Ext(lib) {
	case ".a", ".so", ".dylib", ".lib", ".tbd":
		return lib
	}
	return "-l" + lib
}

func (tc *Toolchain) msvcArgs(src, out string, link bool, libs []string) []string {
	args := []string{"/nologo"}
	args = append(args, tc.Flags...)
	args = append(args, "/Od", "/w")
	for _, dir := range tc.IncludeDirs {
		args = append(args, "/I"+dir)
	}
	args = append(args, tc.Language.msvcSwitch()+src)
	if !link {
		return append(args, "/c", "/Fo"+out)
	}
	args = append(args, "/Fe"+out, "/link")
	for _, dir := range tc.LibraryDirs {
		args = append(args, "/LIBPATH:"+dir)
	}
	for _, lib := range libs {
		if filepath.Ext(lib) == "" {
			lib += ".lib"
		}
		args = append(args, lib)
	}
	return args
}

func (tc *Toolchain) outputExtension(link bool) string {
	switch {
	case link && tc.Flavor == FlavorMSVC:
		return ".exe"
	case link:
		return ".out"
	case tc.Flavor == FlavorMSVC:
		return ".obj"
	default:
		return ".o"
	}
}
