package ccfeatures

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Builder lifecycle states.
const (
	StateOpen     = "open"
	StateBuilding = "building"
	StateBuilt    = "built"
	StateAborted  = "aborted"
)

const (
	eventBuild = "build"
	eventDone  = "done"
	eventAbort = "abort"
)

// Builder accumulates capability checks and raw macro fragments, in
// registration order, and turns them into a configuration header.
//
// A Builder starts open. Build moves it to building and then to built or
// aborted; from then on every registration returns [ErrBuilderClosed].
type Builder struct {
	header      string
	guard       string
	alwaysBuild bool
	jobs        int
	prober      Prober
	logger      *zap.SugaredLogger
	err         error

	mu      sync.Mutex
	state   *fsm.FSM
	entries []builderEntry
}

type builderEntry struct {
	check    *Check
	fragment string
}

// Option configures a [Builder].
type Option func(*Builder)

// WithProber sets the prober used to test alternatives.
func WithProber(p Prober) Option {
	return func(b *Builder) {
		b.prober = p
	}
}

// WithToolchain probes alternatives with the given toolchain.
func WithToolchain(tc *Toolchain) Option {
	return WithProber(tc)
}

// WithAlwaysBuild rewrites the header even when it is already up to date.
func WithAlwaysBuild(always bool) Option {
	return func(b *Builder) {
		b.alwaysBuild = always
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithJobs resolves up to n checks concurrently. Values below 1 use
// GOMAXPROCS. The default is 1, which never probes past a failed
// required check.
func WithJobs(n int) Option {
	return func(b *Builder) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		b.jobs = n
	}
}

// WithGuard overrides the include guard derived from the header path.
// A guard that is not an identifier makes every later call on the builder
// fail with [ErrInvalidGuard].
func WithGuard(guard string) Option {
	return func(b *Builder) {
		b.guard = guard
	}
}

// NewBuilder returns an open builder that will write the header at path.
func NewBuilder(path string, opts ...Option) *Builder {
	b := &Builder{
		header: path,
		jobs:   1,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.guard == "" {
		b.guard = GuardFromPath(path)
	}
	if !IsIdentifier(b.guard) {
		b.err = fmt.Errorf("%w: %q", ErrInvalidGuard, b.guard)
	}
	b.state = fsm.NewFSM(
		StateOpen,
		fsm.Events{
			{Name: eventBuild, Src: []string{StateOpen}, Dst: StateBuilding},
			{Name: eventDone, Src: []string{StateBuilding}, Dst: StateBuilt},
			{Name: eventAbort, Src: []string{StateBuilding}, Dst: StateAborted},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				b.logger.Debugw("builder state", "from", e.Src, "to", e.Dst, "header", b.header)
			},
		},
	)
	return b
}

// State returns the current lifecycle state.
func (b *Builder) State() string {
	return b.state.Current()
}

// RegisterHeaderCheck adds a check satisfied by the first header,
// in order, that can be included.
func (b *Builder) RegisterHeaderCheck(required bool, headers []string, message string) error {
	return b.Register(Check{
		Kind:         KindHeader,
		Required:     required,
		Alternatives: HeaderAlternatives(headers...),
		Message:      message,
	})
}

// RegisterStructCheck adds a check whose alternatives test a type,
// function or snippet.
func (b *Builder) RegisterStructCheck(required bool, alternatives []Alternative, message string) error {
	return b.Register(Check{
		Kind:         KindStruct,
		Required:     required,
		Alternatives: alternatives,
		Message:      message,
	})
}

// RegisterLibraryCheck adds a check whose alternatives must also link
// against their libraries. The selected libraries are exposed by
// [Result.Libraries].
func (b *Builder) RegisterLibraryCheck(required bool, alternatives []Alternative, message string) error {
	return b.Register(Check{
		Kind:         KindLibrary,
		Required:     required,
		Alternatives: alternatives,
		Message:      message,
	})
}

// Register adds c after validating it.
func (b *Builder) Register(c Check) error {
	nc, err := normalizeCheck(c)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureOpen(); err != nil {
		return err
	}
	b.entries = append(b.entries, builderEntry{check: &nc})
	return nil
}

// AddRawMacro appends text to the header verbatim, without probing.
func (b *Builder) AddRawMacro(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureOpen(); err != nil {
		return err
	}
	b.entries = append(b.entries, builderEntry{fragment: text})
	return nil
}

func (b *Builder) ensureOpen() error {
	if b.err != nil {
		return b.err
	}
	if s := b.state.Current(); s != StateOpen {
		return fmt.Errorf("%w: builder is %s", ErrBuilderClosed, s)
	}
	return nil
}

// Build resolves every registered check and writes the header.
//
// The first unresolved required check aborts the build with a
// *[FeatureError]; the header on disk is left untouched. Unresolved
// optional checks emit no macro.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	// Transitions must not be skipped because the caller's context is done.
	fsmCtx := context.WithoutCancel(ctx)

	if b.err != nil {
		return nil, b.err
	}

	b.mu.Lock()
	if err := b.state.Event(fsmCtx, eventBuild); err != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: builder is %s", ErrBuilderClosed, b.state.Current())
	}
	entries := b.entries
	b.mu.Unlock()

	res, err := b.build(ctx, entries)
	if err != nil {
		if ferr := b.state.Event(fsmCtx, eventAbort); ferr != nil {
			b.logger.Errorw("builder state", "event", eventAbort, "error", ferr)
		}
		return nil, err
	}
	if ferr := b.state.Event(fsmCtx, eventDone); ferr != nil {
		b.logger.Errorw("builder state", "event", eventDone, "error", ferr)
	}
	return res, nil
}

func (b *Builder) build(ctx context.Context, entries []builderEntry) (*Result, error) {
	if b.prober == nil {
		return nil, ErrNoProber
	}
	if v, ok := b.prober.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	resolutions, err := b.resolveAll(ctx, entries)
	if err != nil {
		return nil, err
	}

	headerEntries := make([]headerEntry, 0, len(entries))
	ordered := make([]Resolution, 0, len(entries))
	for i, e := range entries {
		if e.check == nil {
			headerEntries = append(headerEntries, headerEntry{fragment: e.fragment})
			continue
		}
		headerEntries = append(headerEntries, headerEntry{resolution: resolutions[i]})
		ordered = append(ordered, *resolutions[i])
	}

	content := renderHeader(b.guard, headerEntries)
	written, err := writeHeader(b.header, content, b.alwaysBuild)
	if err != nil {
		return nil, err
	}
	if written {
		b.logger.Infow("header written", "path", b.header, "bytes", len(content))
	} else {
		b.logger.Infow("header up to date", "path", b.header)
	}

	return &Result{
		Header:      b.header,
		Content:     content,
		Written:     written,
		Resolutions: ordered,
	}, nil
}

// resolveAll resolves checks with up to b.jobs workers. Results are indexed
// like entries. A failure cancels checks that have not started yet.
func (b *Builder) resolveAll(ctx context.Context, entries []builderEntry) ([]*Resolution, error) {
	resolutions := make([]*Resolution, len(entries))
	errs := make([]error, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.jobs)
	for i, e := range entries {
		if e.check == nil {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r, err := resolve(gctx, b.prober, *e.check, b.logger)
			if err == nil {
				err = b.enforce(*e.check, r)
			}
			resolutions[i] = &r
			errs[i] = err
			return err
		})
	}
	_ = g.Wait()

	// Report the earliest registered failure, ignoring checks that were
	// only interrupted because another one failed.
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			continue
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resolutions, nil
}

// enforce applies the required/optional policy to a resolution.
func (b *Builder) enforce(c Check, r Resolution) error {
	if r.Resolved() {
		b.logger.Infow("check resolved", "check", c.Name, "alternative", r.Name(), "macro", r.Macro())
		return nil
	}

	if !c.Required {
		b.logger.Warnw("optional check unresolved", "check", c.Name, "message", c.Message)
		return nil
	}

	reason := c.Message
	if strings.TrimSpace(reason) == "" {
		names := make([]string, 0, len(c.Alternatives))
		for _, alt := range c.Alternatives {
			names = append(names, alt.Name)
		}
		reason = fmt.Sprintf("none of [%s] is supported by the toolchain", strings.Join(names, ", "))
	}

	fe := &FeatureError{Feature: c.Name, Reason: reason}
	if r.Inconclusive() {
		fe.Err = ErrProbeTimeout
	}
	b.logger.Errorw("required check unresolved", "check", c.Name, "reason", reason, "inconclusive", r.Inconclusive())
	return fe
}
