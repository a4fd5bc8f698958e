// Package ccfeatures provides compiler capability probing for C and C++
// projects built against heterogeneous toolchains.
//
// This package decides, at configuration time, which of several alternative
// constructs (a standard facility, a fallback library's equivalent, a
// platform primitive) the configured toolchain actually supports, and
// records the decisions in a generated, include-guarded configuration
// header. Consumers then branch with #ifdef on the emitted HAVE_* macros
// instead of scattering per-platform conditionals through their sources.
//
// # API Model
//
// ccfeatures exposes three layers:
//   - [Prober] compiles one [Alternative]; [Toolchain] is the production
//     implementation that shells out to the real compiler
//   - [Resolve] runs the alternatives of a [Check] in order and stops at the
//     first success
//   - [Builder] registers checks and raw macro fragments, enforces the
//     required/optional policy and writes the header
//
// Alternatives are a preference ranking: list the standard facility first
// and fallbacks after it. Resolution never picks a later alternative when an
// earlier one compiles.
//
// # Building a Header
//
//	tc := &ccfeatures.Toolchain{Compiler: "c++", Flags: []string{"-std=c++11"}}
//	b := ccfeatures.NewBuilder("src/config.h", ccfeatures.WithToolchain(tc))
//	b.RegisterHeaderCheck(true, []string{"unordered_map", "boost/unordered_map.hpp"}, "unordered_map required.")
//	b.RegisterStructCheck(true, []ccfeatures.Alternative{
//	    {Name: "std::bind", Headers: []string{"functional"}, Function: `std::bind(fopen, std::placeholders::_1, "rb")`},
//	    {Name: "boost::bind", Headers: []string{"boost/bind.hpp"}, Function: `boost::bind(fopen, _1, "rb")`},
//	}, "bind required.")
//	b.AddRawMacro("#if defined(__x86_64__) || defined(_M_X64)\n#define PLATFORM_64BIT 1\n#endif")
//
//	res, err := b.Build(ctx)
//	if err != nil {
//	    var fe *ccfeatures.FeatureError
//	    if errors.As(err, &fe) {
//	        log.Fatalf("toolchain not ready: %s: %s", fe.Feature, fe.Reason)
//	    }
//	    log.Fatal(err)
//	}
//	fmt.Println(res) // human-readable summary
//
// # Failure Policy
//
// A probe that does not compile is a normal negative answer. An unresolved
// optional check emits no macro. An unresolved required check aborts
// [Builder.Build] with a *[FeatureError] and leaves any existing header
// untouched. Infrastructure failures (missing compiler, unusable scratch
// directory, unwritable header, probes that never complete) are reported
// with sentinel errors; use [IsInfrastructure] to tell them apart.
//
// # Freshness
//
// The rendered header is compared byte for byte with the file on disk and
// is only rewritten when it differs, so unchanged configurations do not
// trigger rebuilds. [WithAlwaysBuild] forces the rewrite. Writes are atomic.
package ccfeatures
