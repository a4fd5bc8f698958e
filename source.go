package ccfeatures

import (
	"regexp"
	"strings"
)

// mainDefinition matches a user-provided entry point in a probe snippet.
var mainDefinition = regexp.MustCompile(`\bmain\s*\(`)

// ProbeSource synthesizes the minimal translation unit used to probe alt.
// The result only compiles when every header exists and the body is valid.
func ProbeSource(alt Alternative) string {
	var b strings.Builder

	for _, h := range alt.Headers {
		b.WriteString("#include <")
		b.WriteString(h)
		b.WriteString(">\n")
	}
	if len(alt.Headers) > 0 {
		b.WriteString("\n")
	}

	switch {
	case alt.Code != "":
		code := strings.TrimRight(alt.Code, " \t\r\n")
		b.WriteString(code)
		b.WriteString("\n")
		if !mainDefinition.MatchString(code) {
			b.WriteString("\nint main(void) { return 0; }\n")
		}
	case alt.Function != "":
		b.WriteString("int main(void) {\n")
		b.WriteString("  (void)(")
		b.WriteString(alt.Function)
		b.WriteString(");\n")
		b.WriteString("  return 0;\n")
		b.WriteString("}\n")
	case alt.Struct != "":
		b.WriteString("typedef ")
		b.WriteString(alt.Struct)
		b.WriteString(" ccfeatures_probe_type;\n\n")
		b.WriteString("int main(void) {\n")
		b.WriteString("  return sizeof(ccfeatures_probe_type) == 0;\n")
		b.WriteString("}\n")
	default:
		b.WriteString("int main(void) { return 0; }\n")
	}

	return b.String()
}
