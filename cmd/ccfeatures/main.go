package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/leodido/ccfeatures"
	"github.com/leodido/ccfeatures/internal/logging"
	"github.com/leodido/ccfeatures/internal/manifest"
	"github.com/leodido/structcli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Build metadata injected via ldflags.
// When built without ldflags (e.g., plain `go build`), these remain
// at their zero values and the version command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

// Exit codes of the build command.
const (
	exitMissingFeature = 1
	exitInfrastructure = 2
)

func main() {
	root := &cobra.Command{
		Use:   "ccfeatures",
		Short: "Compiler capability probing for C and C++ projects",
		Long: `ccfeatures probes the configured compiler for the facilities a project needs.

For every check in a manifest it compiles tiny probe programs, picks the first
alternative the toolchain accepts and records the decision as a HAVE_* macro in
a generated configuration header. Use it as a configure step ahead of the real
build.`,
		SilenceUsage: true,
	}

	root.AddCommand(buildCmd())
	root.AddCommand(sourceCmd())
	root.AddCommand(toolchainCmd())
	root.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// BuildOptions defines flags for the build subcommand.
type BuildOptions struct {
	Manifest    string       `flag:"manifest" flagshort:"m" flagdescr:"Check manifest (.toml, .yaml or .yml)" flagrequired:"true"`
	Header      string       `flag:"header" flagshort:"o" flagdescr:"Override the header path from the manifest"`
	AlwaysBuild bool         `flag:"always-build" flagdescr:"Rewrite the header even when it is up to date"`
	Compiler    string       `flag:"compiler" flagshort:"c" flagdescr:"Compiler driver to probe with"`
	Flavor      flavorFlag   `flag:"flavor" flagdescr:"Compiler command-line flavor" flagcustom:"true"`
	Language    languageFlag `flag:"language" flagshort:"x" flagdescr:"Probe source language" flagcustom:"true"`
	CFlags      string       `flag:"cflags" flagdescr:"Extra compiler flags, space separated"`
	Timeout     string       `flag:"timeout" flagdescr:"Per-probe timeout (e.g. 30s)"`
	Jobs        int          `flag:"jobs" flagshort:"J" flagdescr:"Checks resolved concurrently, negative uses every CPU (default 1)"`
	JSON        bool         `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
	Verbose     bool         `flag:"verbose" flagshort:"v" flagdescr:"Log every probe to stderr"`
}

func (o *BuildOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *BuildOptions) DefineFlavor(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*flavorFlag)
	*fieldPtr = ""
	return fieldPtr, descr + " (" + strings.Join(flavorNames(), ", ") + ")"
}

func (o *BuildOptions) DecodeFlavor(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseFlavorFlag(s)
}

func (o *BuildOptions) CompleteFlavor(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeNames(flavorNames(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

func (o *BuildOptions) DefineLanguage(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*languageFlag)
	*fieldPtr = ""
	return fieldPtr, descr + " (" + strings.Join(languageNames(), ", ") + ")"
}

func (o *BuildOptions) DecodeLanguage(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseLanguageFlag(s)
}

func (o *BuildOptions) CompleteLanguage(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeNames(languageNames(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

func buildCmd() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Resolve every check in a manifest and write the configuration header",
		Long:  buildLongDescription(),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			logger := logging.New(os.Stderr, opts.Verbose)
			defer logger.Sync() //nolint:errcheck

			res, err := runBuild(c.Context(), opts, logger)
			if err != nil {
				code := exitCode(err)
				if opts.JSON {
					if jerr := printJSON(failureReport(err)); jerr != nil {
						return jerr
					}
					os.Exit(code)
				}
				var fe *ccfeatures.FeatureError
				if errors.As(err, &fe) {
					fmt.Fprintf(os.Stderr, "%s: %s: %s\n", color.RedString("FAIL"), fe.Feature, fe.Reason)
				} else {
					fmt.Fprintf(os.Stderr, "%s: %v\n", color.RedString("FAIL"), err)
				}
				os.Exit(code)
			}

			if opts.JSON {
				return printJSON(newReport(res))
			}
			fmt.Print(res)
			state := "up to date"
			if res.Written {
				state = "written"
			}
			fmt.Printf("\n%s: %s %s\n", color.GreenString("OK"), res.Header, state)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// runBuild loads the manifest, applies the flag overrides and builds the header.
func runBuild(ctx context.Context, opts *BuildOptions, logger *zap.SugaredLogger) (*ccfeatures.Result, error) {
	f, err := manifest.Load(opts.Manifest)
	if err != nil {
		return nil, err
	}
	tc, err := f.NewToolchain()
	if err != nil {
		return nil, err
	}
	if err := opts.applyToolchain(tc); err != nil {
		return nil, err
	}

	if err := tc.RequireVersion(ctx, f.Toolchain.MinVersion); err != nil {
		return nil, err
	}

	header, guard := f.HeaderPath(), f.IncludeGuard()
	if opts.Header != "" {
		header = opts.Header
		if f.Guard == "" {
			guard = ccfeatures.GuardFromPath(opts.Header)
		}
	}

	builderOpts := []ccfeatures.Option{
		ccfeatures.WithToolchain(tc),
		ccfeatures.WithAlwaysBuild(f.AlwaysBuild || opts.AlwaysBuild),
		ccfeatures.WithGuard(guard),
		ccfeatures.WithLogger(logger),
	}
	if opts.Jobs != 0 {
		builderOpts = append(builderOpts, ccfeatures.WithJobs(opts.Jobs))
	}

	b := ccfeatures.NewBuilder(header, builderOpts...)
	if err := f.Apply(b); err != nil {
		return nil, err
	}
	return b.Build(ctx)
}

func (o *BuildOptions) applyToolchain(tc *ccfeatures.Toolchain) error {
	if o.Compiler != "" {
		tc.Compiler = o.Compiler
	}
	if o.Flavor != "" {
		flavor, err := manifest.ParseFlavor(string(o.Flavor))
		if err != nil {
			return err
		}
		tc.Flavor = flavor
	}
	if o.Language != "" {
		lang, err := manifest.ParseLanguage(string(o.Language))
		if err != nil {
			return err
		}
		tc.Language = lang
	}
	tc.Flags = append(tc.Flags, strings.Fields(o.CFlags)...)
	if o.Timeout != "" {
		d, err := time.ParseDuration(o.Timeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout: %w", err)
		}
		tc.Timeout = d
	}
	if tc.Compiler == "" {
		tc.Compiler = defaultCompiler(tc.Flavor, tc.Language)
	}
	return nil
}

func defaultCompiler(f ccfeatures.Flavor, l ccfeatures.Language) string {
	switch {
	case f == ccfeatures.FlavorMSVC:
		return "cl"
	case l == ccfeatures.LanguageC:
		return "cc"
	default:
		return "c++"
	}
}

// exitCode maps a build error to the process exit status. Only a missing
// capability exits with 1, any other failure exits with 2.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var fe *ccfeatures.FeatureError
	if errors.As(err, &fe) && !ccfeatures.IsInfrastructure(err) {
		return exitMissingFeature
	}
	return exitInfrastructure
}

// SourceOptions defines flags for the source subcommand.
type SourceOptions struct {
	Manifest string `flag:"manifest" flagshort:"m" flagdescr:"Check manifest (.toml, .yaml or .yml)" flagrequired:"true"`
	Check    string `flag:"check" flagdescr:"Only print the probes of this check"`
}

func (o *SourceOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func sourceCmd() *cobra.Command {
	opts := &SourceOptions{}

	cmd := &cobra.Command{
		Use:   "source",
		Short: "Print the probe programs a manifest would compile",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			f, err := manifest.Load(opts.Manifest)
			if err != nil {
				return err
			}
			checks, err := f.Checks()
			if err != nil {
				return err
			}

			printed := 0
			for _, check := range checks {
				if opts.Check != "" && check.Name != opts.Check {
					continue
				}
				for _, alt := range check.Alternatives {
					fmt.Printf("/* %s (%s): %s -> %s */\n", check.Name, check.Kind, alt.Name, alt.MacroName())
					fmt.Println(ccfeatures.ProbeSource(alt))
					printed++
				}
			}
			if printed == 0 && opts.Check != "" {
				return fmt.Errorf("no check named %q", opts.Check)
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// ToolchainOptions defines flags for the toolchain subcommand.
type ToolchainOptions struct {
	Manifest string `flag:"manifest" flagshort:"m" flagdescr:"Read the toolchain from this manifest"`
	Compiler string `flag:"compiler" flagshort:"c" flagdescr:"Compiler driver to inspect"`
	JSON     bool   `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *ToolchainOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func toolchainCmd() *cobra.Command {
	opts := &ToolchainOptions{}

	cmd := &cobra.Command{
		Use:   "toolchain",
		Short: "Display the detected compiler and host",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			tc := &ccfeatures.Toolchain{}
			minVersion := ""
			if opts.Manifest != "" {
				f, err := manifest.Load(opts.Manifest)
				if err != nil {
					return err
				}
				if tc, err = f.NewToolchain(); err != nil {
					return err
				}
				minVersion = f.Toolchain.MinVersion
			}
			if opts.Compiler != "" {
				tc.Compiler = opts.Compiler
			}
			if tc.Compiler == "" {
				tc.Compiler = defaultCompiler(tc.Flavor, tc.Language)
			}

			v, err := tc.Version(c.Context())
			if err != nil {
				return err
			}
			accepted := tc.RequireVersion(c.Context(), minVersion) == nil

			if opts.JSON {
				return printJSON(map[string]any{
					"compiler":    tc.Compiler,
					"flavor":      tc.Flavor.String(),
					"language":    tc.Language.String(),
					"version":     v.String(),
					"min_version": minVersion,
					"accepted":    accepted,
					"host":        ccfeatures.Host(),
				})
			}

			fmt.Printf("Compiler: %s\n", tc.Compiler)
			fmt.Printf("Flavor:   %s\n", tc.Flavor)
			fmt.Printf("Language: %s\n", tc.Language)
			fmt.Printf("Version:  %s\n", v)
			if minVersion != "" {
				verdict := color.GreenString("accepted")
				if !accepted {
					verdict = color.RedString("rejected")
				}
				fmt.Printf("Required: %s (%s)\n", minVersion, verdict)
			}
			fmt.Printf("Host:     %s\n", ccfeatures.Host())
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool version and host",
		RunE: func(c *cobra.Command, args []string) error {
			if version != "" {
				fmt.Printf("ccfeatures %s", version)
				if commit != "" {
					fmt.Printf(" (%s)", commit)
				}
				if date != "" {
					fmt.Printf(" built %s", date)
				}
				fmt.Println()
			} else {
				fmt.Println("ccfeatures (dev)")
			}

			fmt.Printf("Host: %s\n", ccfeatures.Host())
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// checkReport is the JSON form of a resolution.
type checkReport struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Required  bool     `json:"required"`
	Selected  string   `json:"selected,omitempty"`
	Macro     string   `json:"macro,omitempty"`
	Libraries []string `json:"libraries,omitempty"`
}

// buildReport is the JSON output of the build command.
type buildReport struct {
	OK        bool          `json:"ok"`
	Header    string        `json:"header,omitempty"`
	Written   bool          `json:"written"`
	Checks    []checkReport `json:"checks,omitempty"`
	Libraries []string      `json:"libraries,omitempty"`
	Defines   []string      `json:"defines,omitempty"`
	Feature   string        `json:"feature,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func newReport(res *ccfeatures.Result) buildReport {
	r := buildReport{
		OK:        true,
		Header:    res.Header,
		Written:   res.Written,
		Libraries: res.Libraries(),
		Defines:   res.Defines(),
	}
	for _, rs := range res.Resolutions {
		r.Checks = append(r.Checks, checkReport{
			Name:      rs.Check,
			Kind:      rs.Kind.String(),
			Required:  rs.Required,
			Selected:  rs.Name(),
			Macro:     rs.Macro(),
			Libraries: rs.Libraries(),
		})
	}
	return r
}

func failureReport(err error) buildReport {
	r := buildReport{Error: err.Error()}
	var fe *ccfeatures.FeatureError
	if errors.As(err, &fe) {
		r.Feature = fe.Feature
		r.Reason = fe.Reason
	}
	return r
}

func buildLongDescription() string {
	return fmt.Sprintf(`Resolve every check in a manifest and write the configuration header.
Exits with code 0 when the header is ready, 1 when a required capability is
missing and 2 on any other failure (toolchain, manifest, filesystem).

Flavors:
%s

Languages:
%s`, formatWrappedList(flavorNames(), "  ", 80), formatWrappedList(languageNames(), "  ", 80))
}

func formatWrappedList(items []string, indent string, maxWidth int) string {
	if len(items) == 0 {
		return indent + "(none)"
	}

	lines := make([]string, 0, len(items))
	line := indent
	for i, item := range items {
		token := item
		if i < len(items)-1 {
			token += ", "
		}

		if len(line)+len(token) > maxWidth && line != indent {
			lines = append(lines, strings.TrimRight(line, " "))
			line = indent + token
			continue
		}

		line += token
	}

	lines = append(lines, strings.TrimRight(line, " "))
	return strings.Join(lines, "\n")
}

// flavorFlag is a --flavor value holding the canonical flavor name.
// Empty leaves the manifest flavor alone.
type flavorFlag string

func (f *flavorFlag) String() string {
	return string(*f)
}

func (f *flavorFlag) Set(input string) error {
	v, err := parseFlavorFlag(input)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f *flavorFlag) Type() string {
	return "flavor"
}

func parseFlavorFlag(input string) (flavorFlag, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}
	flavor, err := manifest.ParseFlavor(input)
	if err != nil {
		return "", fmt.Errorf("%w (available: %s)", err, strings.Join(flavorNames(), ", "))
	}
	return flavorFlag(flavor.String()), nil
}

// languageFlag is a --language value holding the canonical language name.
type languageFlag string

func (l *languageFlag) String() string {
	return string(*l)
}

func (l *languageFlag) Set(input string) error {
	v, err := parseLanguageFlag(input)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

func (l *languageFlag) Type() string {
	return "language"
}

func parseLanguageFlag(input string) (languageFlag, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}
	lang, err := manifest.ParseLanguage(input)
	if err != nil {
		return "", fmt.Errorf("%w (available: %s)", err, strings.Join(languageNames(), ", "))
	}
	return languageFlag(lang.String()), nil
}

func flavorNames() []string {
	return identifierNames(ccfeatures.FlavorIdentifiers())
}

func languageNames() []string {
	return identifierNames(ccfeatures.LanguageIdentifiers())
}

func identifierNames[E ~int](ids map[E][]string) []string {
	var names []string
	for _, aliases := range ids {
		names = append(names, aliases...)
	}
	slices.Sort(names)
	return names
}

func completeNames(names []string, toComplete string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, strings.ToLower(toComplete)) {
			out = append(out, n)
		}
	}
	return out
}
