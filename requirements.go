package ccfeatures

import (
	"fmt"
	"slices"
	"strings"
)

// HeaderAlternatives builds one header-inclusion alternative per header name.
func HeaderAlternatives(headers ...string) []Alternative {
	alts := make([]Alternative, 0, len(headers))
	for _, h := range headers {
		alts = append(alts, Alternative{Name: h, Headers: []string{h}})
	}
	return alts
}

// normalizeCheck validates c and returns a copy the caller can no longer
// mutate. Repeated identical alternatives are dropped; two different
// alternatives sharing a name are rejected. An unnamed check takes the
// name of its first alternative.
func normalizeCheck(c Check) (Check, error) {
	out := Check{
		Name:     strings.TrimSpace(c.Name),
		Kind:     c.Kind,
		Required: c.Required,
		Message:  c.Message,
	}
	if _, ok := kindNames[c.Kind]; !ok {
		return Check{}, fmt.Errorf("check %q: %w: unknown kind %s", c.Name, ErrInvalidAlternative, c.Kind)
	}

	seen := make(map[string]Alternative, len(c.Alternatives))
	for i, alt := range c.Alternatives {
		alt, err := normalizeAlternative(c.Kind, alt)
		if err != nil {
			return Check{}, fmt.Errorf("check %q alternative %d: %w", c.Name, i, err)
		}
		if prev, dup := seen[alt.Name]; dup {
			if !sameAlternative(prev, alt) {
				return Check{}, fmt.Errorf("check %q alternative %d: %w: %s is already defined differently", c.Name, i, ErrInvalidAlternative, alt.Name)
			}
			continue
		}
		seen[alt.Name] = alt
		out.Alternatives = append(out.Alternatives, alt)
	}

	if len(out.Alternatives) == 0 {
		return Check{}, fmt.Errorf("check %q: %w", c.Name, ErrNoAlternatives)
	}
	if out.Name == "" {
		out.Name = out.Alternatives[0].Name
	}
	return out, nil
}

func normalizeAlternative(kind Kind, alt Alternative) (Alternative, error) {
	alt.Name = strings.TrimSpace(alt.Name)
	if alt.Name == "" {
		return Alternative{}, fmt.Errorf("%w: missing name", ErrInvalidAlternative)
	}

	bodies := 0
	for _, s := range []string{alt.Code, alt.Function, alt.Struct} {
		if strings.TrimSpace(s) != "" {
			bodies++
		}
	}
	if bodies > 1 {
		return Alternative{}, fmt.Errorf("%w: %s sets more than one of code, function and struct", ErrInvalidAlternative, alt.Name)
	}
	if kind == KindHeader && bodies > 0 {
		return Alternative{}, fmt.Errorf("%w: %s: header checks take no probe body", ErrInvalidAlternative, alt.Name)
	}
	if kind == KindHeader && len(alt.Headers) == 0 {
		return Alternative{}, fmt.Errorf("%w: %s: header checks need at least one header", ErrInvalidAlternative, alt.Name)
	}
	if kind != KindLibrary && len(alt.Libraries) > 0 {
		return Alternative{}, fmt.Errorf("%w: %s: libraries require a library check", ErrInvalidAlternative, alt.Name)
	}
	for _, h := range alt.Headers {
		if strings.TrimSpace(h) == "" {
			return Alternative{}, fmt.Errorf("%w: %s: empty header name", ErrInvalidAlternative, alt.Name)
		}
	}

	if alt.Macro != "" && !IsIdentifier(alt.Macro) {
		return Alternative{}, fmt.Errorf("%w: %s: macro %q is not an identifier", ErrInvalidAlternative, alt.Name, alt.Macro)
	}

	alt.Headers = slices.Clone(alt.Headers)
	alt.Libraries = slices.Clone(alt.Libraries)
	return alt, nil
}

func sameAlternative(a, b Alternative) bool {
	return a.Name == b.Name &&
		a.Code == b.Code &&
		a.Function == b.Function &&
		a.Struct == b.Struct &&
		a.Macro == b.Macro &&
		slices.Equal(a.Headers, b.Headers) &&
		slices.Equal(a.Libraries, b.Libraries)
}
