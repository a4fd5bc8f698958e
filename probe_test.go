package ccfeatures

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestToolchain_Args(t *testing.T) {
	tests := []struct {
		name string
		tc   Toolchain
		link bool
		libs []string
		want []string
	}{
		{
			name: "gcc compile c++",
			tc:   Toolchain{Flags: []string{"-std=c++11"}, IncludeDirs: []string{"/opt/boost/include"}},
			want: []string{"-std=c++11", "-O0", "-w", "-I/opt/boost/include", "-x", "c++", "-c", "p.cc", "-x", "none", "-o", "p.o"},
		},
		{
			name: "gcc compile c",
			tc:   Toolchain{Language: LanguageC},
			want: []string{"-O0", "-w", "-x", "c", "-c", "p.cc", "-x", "none", "-o", "p.o"},
		},
		{
			name: "gcc link",
			tc:   Toolchain{LibraryDirs: []string{"/opt/boost/lib"}},
			link: true,
			libs: []string{"pthread", "/opt/boost/lib/libboost_thread.a", "-framework"},
			want: []string{
				"-O0", "-w", "-x", "c++", "p.cc", "-x", "none", "-o", "p.o",
				"-L/opt/boost/lib", "-lpthread", "/opt/boost/lib/libboost_thread.a", "-framework",
			},
		},
		{
			name: "msvc compile",
			tc:   Toolchain{Flavor: FlavorMSVC, Flags: []string{"/EHsc"}, IncludeDirs: []string{`C:\boost`}},
			want: []string{"/nologo", "/EHsc", "/Od", "/w", `/IC:\boost`, "/Tpp.cc", "/c", "/Fop.o"},
		},
		{
			name: "msvc link c",
			tc:   Toolchain{Flavor: FlavorMSVC, Language: LanguageC, LibraryDirs: []string{`C:\lib`}},
			link: true,
			libs: []string{"ws2_32", "boost_thread.lib"},
			want: []string{"/nologo", "/Od", "/w", "/Tcp.cc", "/Fep.o", "/link", `/LIBPATH:C:\lib`, "ws2_32.lib", "boost_thread.lib"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tc.Args("p.cc", "p.o", tt.link, tt.libs)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Args()\ngot:  %q\nwant: %q", got, tt.want)
			}
		})
	}
}

func TestToolchain_OutputExtension(t *testing.T) {
	tests := []struct {
		flavor Flavor
		link   bool
		want   string
	}{
		{FlavorGCC, false, ".o"},
		{FlavorGCC, true, ".out"},
		{FlavorMSVC, false, ".obj"},
		{FlavorMSVC, true, ".exe"},
	}
	for _, tt := range tests {
		tc := Toolchain{Flavor: tt.flavor}
		if got := tc.outputExtension(tt.link); got != tt.want {
			t.Errorf("outputExtension(%s, %v) = %q, want %q", tt.flavor, tt.link, got, tt.want)
		}
	}
}

func TestToolchain_ProbeMissingCompiler(t *testing.T) {
	tc := &Toolchain{
		Compiler:   filepath.Join(t.TempDir(), "no-such-cc"),
		ScratchDir: t.TempDir(),
	}
	res := tc.Probe(context.Background(), KindHeader, Alternative{Name: "stdio.h", Headers: []string{"stdio.h"}})
	if res.Supported {
		t.Fatal("Supported = true for a missing compiler")
	}
	if !errors.Is(res.Error, ErrCompilerNotFound) {
		t.Errorf("Error = %v, want ErrCompilerNotFound", res.Error)
	}
	assertEmptyDir(t, tc.ScratchDir)
}

func TestToolchain_ProbeBadScratchDir(t *testing.T) {
	tc := &Toolchain{
		Compiler:   "cc",
		ScratchDir: filepath.Join(t.TempDir(), "missing"),
	}
	res := tc.Probe(context.Background(), KindHeader, Alternative{Name: "x"})
	if !errors.Is(res.Error, ErrScratchDir) {
		t.Errorf("Error = %v, want ErrScratchDir", res.Error)
	}
}

func TestToolchain_Validate(t *testing.T) {
	if err := (&Toolchain{}).Validate(); !errors.Is(err, ErrCompilerNotFound) {
		t.Errorf("empty compiler: error = %v, want ErrCompilerNotFound", err)
	}

	missing := &Toolchain{Compiler: filepath.Join(t.TempDir(), "no-such-cc")}
	if err := missing.Validate(); !errors.Is(err, ErrCompilerNotFound) {
		t.Errorf("missing compiler: error = %v, want ErrCompilerNotFound", err)
	}

	exe, err := os.Executable()
	if err != nil {
		t.Skip("cannot locate test binary")
	}
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	notDir := &Toolchain{Compiler: exe, ScratchDir: file}
	if err := notDir.Validate(); !errors.Is(err, ErrScratchDir) {
		t.Errorf("scratch file: error = %v, want ErrScratchDir", err)
	}
}

func TestParseCompilerVersion(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"12", "12.0.0", false},
		{"9.4.0\n", "9.4.0", false},
		{"19.29.30133.0", "19.29.30133", false},
		{"4.8", "4.8.0", false},
		{"unknown", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := parseCompilerVersion(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCompilerVersion(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && v.String() != tt.want {
				t.Errorf("parseCompilerVersion(%q) = %s, want %s", tt.raw, v, tt.want)
			}
		})
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("scratch directory not cleaned up: %v", names)
	}
}
