package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/leodido/ccfeatures"
)

func TestParseFlavorFlag_CaseInsensitive(t *testing.T) {
	tests := []struct {
		input string
		want  flavorFlag
	}{
		{" GCC ", "gcc"},
		{"Clang", "gcc"},
		{"cl", "msvc"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := parseFlavorFlag(tt.input)
		if err != nil {
			t.Fatalf("parseFlavorFlag(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("parseFlavorFlag(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseFlavorFlag_Unknown(t *testing.T) {
	_, err := parseFlavorFlag("borland")
	if err == nil {
		t.Fatal("parseFlavorFlag(borland) expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, `unknown compiler flavor "borland"`) {
		t.Fatalf("error %q missing unknown flavor context", msg)
	}
	if !strings.Contains(msg, "available:") {
		t.Fatalf("error %q missing available flavors", msg)
	}
}

func TestLanguageFlag_Set(t *testing.T) {
	var l languageFlag
	if err := l.Set("CXX"); err != nil {
		t.Fatalf("Set(CXX) error = %v", err)
	}
	if l.String() != "c++" {
		t.Errorf("String() = %q, want c++", l.String())
	}
	if err := l.Set("fortran"); err == nil {
		t.Error("Set(fortran) expected error")
	}
	if l.String() != "c++" {
		t.Errorf("failed Set must keep the previous value, got %q", l.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"missing feature", &ccfeatures.FeatureError{Feature: "thread", Reason: "thread required."}, exitMissingFeature},
		{"all probes timed out", &ccfeatures.FeatureError{Feature: "x", Reason: "y", Err: ccfeatures.ErrProbeTimeout}, exitInfrastructure},
		{"compiler missing", fmt.Errorf("probe: %w", ccfeatures.ErrCompilerNotFound), exitInfrastructure},
		{"header unwritable", ccfeatures.ErrHeaderWrite, exitInfrastructure},
		{"version rejected", ccfeatures.ErrToolchainVersion, exitInfrastructure},
		{"bad manifest", errors.New("missing header path"), exitInfrastructure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestBuildLongDescription_ListsIdentifiers(t *testing.T) {
	desc := buildLongDescription()
	for _, name := range append(flavorNames(), languageNames()...) {
		if !strings.Contains(desc, name) {
			t.Fatalf("buildLongDescription() missing %q", name)
		}
	}
}

func TestFormatWrappedList(t *testing.T) {
	if got := formatWrappedList(nil, "  ", 80); got != "  (none)" {
		t.Errorf("empty list = %q", got)
	}
	got := formatWrappedList([]string{"alpha", "beta", "gamma"}, "  ", 14)
	want := "  alpha,\n  beta, gamma"
	if got != want {
		t.Errorf("formatWrappedList() = %q, want %q", got, want)
	}
}

func TestCompleteNames(t *testing.T) {
	opts := &BuildOptions{}
	got, _ := opts.CompleteFlavor(nil, nil, "C")
	if !slices.Equal(got, []string{"cl", "clang"}) {
		t.Errorf("CompleteFlavor(C) = %v", got)
	}
	all, _ := opts.CompleteLanguage(nil, nil, "")
	if len(all) != len(languageNames()) {
		t.Errorf("CompleteLanguage() = %v", all)
	}
}

func TestNewReport(t *testing.T) {
	b := ccfeatures.NewBuilder(filepath.Join(t.TempDir(), "config.h"),
		ccfeatures.WithProber(ccfeatures.ProberFunc(func(_ context.Context, _ ccfeatures.Kind, alt ccfeatures.Alternative) ccfeatures.ProbeResult {
			return ccfeatures.ProbeResult{Supported: alt.Name != "VM_MAKE_TAG"}
		})),
	)
	if err := b.RegisterHeaderCheck(true, []string{"thread"}, ""); err != nil {
		t.Fatal(err)
	}
	if err := b.RegisterStructCheck(false, []ccfeatures.Alternative{{Name: "VM_MAKE_TAG"}}, ""); err != nil {
		t.Fatal(err)
	}
	if err := b.RegisterLibraryCheck(true, []ccfeatures.Alternative{{Name: "pthread", Libraries: []string{"pthread"}}}, ""); err != nil {
		t.Fatal(err)
	}
	res, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	r := newReport(res)
	if !r.OK || !r.Written || len(r.Checks) != 3 {
		t.Fatalf("report = %+v", r)
	}
	if r.Checks[0].Macro != "HAVE_THREAD" || r.Checks[0].Kind != "header" {
		t.Errorf("checks[0] = %+v", r.Checks[0])
	}
	if r.Checks[1].Selected != "" || r.Checks[1].Macro != "" {
		t.Errorf("unresolved check should have no selection: %+v", r.Checks[1])
	}
	if !slices.Equal(r.Libraries, []string{"pthread"}) {
		t.Errorf("Libraries = %v", r.Libraries)
	}
	if !slices.Equal(r.Defines, []string{"HAVE_PTHREAD=1", "HAVE_THREAD=1"}) {
		t.Errorf("Defines = %v", r.Defines)
	}
}

func TestFailureReport(t *testing.T) {
	r := failureReport(fmt.Errorf("build: %w", &ccfeatures.FeatureError{Feature: "mutex", Reason: "mutex required."}))
	if r.OK || r.Feature != "mutex" || r.Reason != "mutex required." || r.Error == "" {
		t.Errorf("failureReport() = %+v", r)
	}
}

func TestDefaultCompiler(t *testing.T) {
	if got := defaultCompiler(ccfeatures.FlavorMSVC, ccfeatures.LanguageC); got != "cl" {
		t.Errorf("msvc default = %q", got)
	}
	if got := defaultCompiler(ccfeatures.FlavorGCC, ccfeatures.LanguageC); got != "cc" {
		t.Errorf("c default = %q", got)
	}
	if got := defaultCompiler(ccfeatures.FlavorGCC, ccfeatures.LanguageCXX); got != "c++" {
		t.Errorf("c++ default = %q", got)
	}
}
