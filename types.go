package ccfeatures

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrNoAlternatives is returned when a check is registered without candidates.
	ErrNoAlternatives = errors.New("check has no alternatives")
	// ErrInvalidAlternative is returned when an alternative is malformed.
	ErrInvalidAlternative = errors.New("invalid alternative")
	// ErrBuilderClosed is returned when a builder is used after Build started.
	ErrBuilderClosed = errors.New("builder is closed")
	// ErrNoProber is returned by Build when no prober was configured.
	ErrNoProber = errors.New("no prober configured")
	// ErrInvalidGuard is returned when the include guard is not an identifier.
	ErrInvalidGuard = errors.New("invalid include guard")

	// ErrCompilerNotFound means the configured compiler cannot be executed.
	ErrCompilerNotFound = errors.New("compiler not found")
	// ErrScratchDir means the probe scratch location is not usable.
	ErrScratchDir = errors.New("scratch directory unusable")
	// ErrProbeTimeout means a probe did not complete within its deadline.
	ErrProbeTimeout = errors.New("probe timed out")
	// ErrHeaderWrite means the configuration header could not be written.
	ErrHeaderWrite = errors.New("cannot write configuration header")
	// ErrToolchainVersion means the compiler version is outside the accepted range.
	ErrToolchainVersion = errors.New("toolchain version rejected")
)

// IsInfrastructure reports whether err denotes an infrastructure failure
// (toolchain, scratch space, header path) rather than a missing capability.
func IsInfrastructure(err error) bool {
	for _, target := range []error{
		ErrCompilerNotFound,
		ErrScratchDir,
		ErrProbeTimeout,
		ErrHeaderWrite,
		ErrToolchainVersion,
		ErrNoProber,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Kind selects how the alternatives of a check are probed.
type Kind int

const (
	// KindHeader probes that the listed headers can be included.
	KindHeader Kind = iota
	// KindStruct probes a type, function or snippet against the headers.
	KindStruct
	// KindLibrary additionally links the probe against the listed libraries.
	KindLibrary
)

var kindNames = map[Kind]string{
	KindHeader:  "header",
	KindStruct:  "struct",
	KindLibrary: "library",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind returns the Kind named s (case-insensitive).
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown check kind %q", s)
}

// Alternative is one concrete way to realize a capability.
//
// At most one of Code, Function and Struct drives the probe body.
// When none is set the probe only includes Headers.
type Alternative struct {
	// Name identifies the alternative and derives its macro.
	Name string
	// Headers are included, in order, at the top of the probe.
	Headers []string
	// Code is a snippet placed verbatim at translation-unit scope.
	Code string
	// Function is an expression or function designator evaluated in main.
	Function string
	// Struct is a type that must be complete for the probe to compile.
	Struct string
	// Libraries are linked into the probe (library checks only).
	Libraries []string
	// Macro overrides the derived HAVE_* macro name.
	Macro string
}

// MacroName returns the macro emitted when the alternative is selected.
func (a Alternative) MacroName() string {
	if a.Macro != "" {
		return a.Macro
	}
	return MacroName(a.Name)
}

// IsIdentifier reports whether s is a valid C preprocessor identifier.
// Macro overrides and include guards must satisfy it.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// MacroName derives a HAVE_* macro from an alternative name.
// Runs of characters outside [A-Za-z0-9] collapse into a single underscore.
func MacroName(name string) string {
	var b strings.Builder
	b.WriteString("HAVE_")
	pending := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			r -= 'a' - 'A'
			fallthrough
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			if pending && b.Len() > len("HAVE_") {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	return b.String()
}

// Check is a named capability test.
type Check struct {
	Name         string
	Kind         Kind
	Required     bool
	Alternatives []Alternative
	// Message is reported when a required check cannot be resolved.
	Message string
}

// ProbeResult represents the outcome of probing a single alternative.
type ProbeResult struct {
	// Supported indicates whether the alternative compiled (and linked).
	Supported bool
	// Error is non-nil if the probe itself failed (not just unsupported).
	Error error
	// Output holds the captured compiler output, for debugging.
	Output string
	// Elapsed is the wall time spent in the compiler.
	Elapsed time.Duration
}

// Attempt records one probed alternative.
type Attempt struct {
	Alternative string
	Result      ProbeResult
}

// Resolution is the outcome of running a check.
type Resolution struct {
	Check    string
	Kind     Kind
	Required bool
	// Selected is the index of the chosen alternative, or -1 when unresolved.
	Selected int
	Attempts []Attempt

	alternatives []Alternative
}

// Resolved reports whether an alternative was selected.
func (r Resolution) Resolved() bool {
	return r.Selected >= 0 && r.Selected < len(r.alternatives)
}

// Alternative returns the selected alternative.
func (r Resolution) Alternative() (Alternative, bool) {
	if !r.Resolved() {
		return Alternative{}, false
	}
	return r.alternatives[r.Selected], true
}

// Name returns the selected alternative name, or "" when unresolved.
func (r Resolution) Name() string {
	alt, _ := r.Alternative()
	return alt.Name
}

// Macro returns the macro emitted for the resolution, or "" when unresolved.
func (r Resolution) Macro() string {
	alt, ok := r.Alternative()
	if !ok {
		return ""
	}
	return alt.MacroName()
}

// Libraries returns the library artifacts of the selected alternative.
func (r Resolution) Libraries() []string {
	alt, _ := r.Alternative()
	return alt.Libraries
}

// Inconclusive reports whether no attempt ran to completion (all timed out).
func (r Resolution) Inconclusive() bool {
	if len(r.Attempts) == 0 {
		return false
	}
	for _, a := range r.Attempts {
		if !errors.Is(a.Result.Error, ErrProbeTimeout) {
			return false
		}
	}
	return true
}

// FeatureError represents an error when a required capability is unavailable.
type FeatureError struct {
	Feature string
	Reason  string
	Err     error
}

func (e *FeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feature %s: %s: %v", e.Feature, e.Reason, e.Err)
	}
	return fmt.Sprintf("feature %s: %s", e.Feature, e.Reason)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}
