package ccfeatures

import (
	"slices"
	"sort"
)

// Result is the outcome of a successful [Builder.Build].
type Result struct {
	// Header is the path of the configuration header.
	Header string
	// Content is the rendered header, whether or not it was written.
	Content []byte
	// Written is false when the header on disk was already up to date.
	Written bool
	// Resolutions holds one entry per check, in registration order.
	Resolutions []Resolution
}

// Lookup returns the resolution of the first check named name.
func (r *Result) Lookup(name string) (Resolution, bool) {
	for _, res := range r.Resolutions {
		if res.Check == name {
			return res, true
		}
	}
	return Resolution{}, false
}

// Selected returns the alternative chosen for the check named name.
func (r *Result) Selected(name string) (string, bool) {
	res, ok := r.Lookup(name)
	if !ok || !res.Resolved() {
		return "", false
	}
	return res.Name(), true
}

// Libraries returns the library artifacts selected by library checks,
// in registration order and without duplicates.
func (r *Result) Libraries() []string {
	var libs []string
	for _, res := range r.Resolutions {
		if res.Kind != KindLibrary {
			continue
		}
		for _, lib := range res.Libraries() {
			if !slices.Contains(libs, lib) {
				libs = append(libs, lib)
			}
		}
	}
	return libs
}

// Defines returns the emitted macros as NAME=1 strings, sorted, for
// forwarding to a project-file generator.
func (r *Result) Defines() []string {
	var defs []string
	for _, res := range r.Resolutions {
		if m := res.Macro(); m != "" {
			defs = append(defs, m+"=1")
		}
	}
	sort.Strings(defs)
	return slices.Compact(defs)
}
