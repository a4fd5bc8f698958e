package ccfeatures

import (
	"fmt"
	"strings"
)

// String returns a human-readable summary of all resolutions.
func (r *Result) String() string {
	var b strings.Builder

	state := "up to date"
	if r.Written {
		state = "written"
	}
	fmt.Fprintf(&b, "Header: %s (%s)\n", r.Header, state)
	b.WriteString("\n")

	b.WriteString("Checks:\n")
	for _, res := range r.Resolutions {
		writeResolution(&b, res)
	}

	if libs := r.Libraries(); len(libs) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "Libraries: %s\n", strings.Join(libs, ", "))
	}

	return b.String()
}

func writeResolution(b *strings.Builder, res Resolution) {
	policy := "optional"
	if res.Required {
		policy = "required"
	}
	if res.Resolved() {
		fmt.Fprintf(b, "  %s (%s, %s): yes (%s -> %s)\n", res.Check, res.Kind, policy, res.Name(), res.Macro())
		return
	}
	fmt.Fprintf(b, "  %s (%s, %s): no\n", res.Check, res.Kind, policy)
}
