package diagram

import (
	"fmt"
	"strings"
)

type InvalidError struct {
	Kind   Kind
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s diagram: %s", e.Kind, e.Reason)
}

func invalidf(kind Kind, format string, args ...any) error {
	return &InvalidError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Check runs the structural checks for kind against text. It returns an
// *InvalidError describing the first problem found, or nil.
func Check(text string, kind Kind) error {
	spec, ok := catalog[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if strings.Contains(text, "```") {
		return invalidf(kind, "output contains code fences")
	}

	lines := significantLines(text)
	if len(lines) == 0 {
		return invalidf(kind, "diagram is empty")
	}

	header := lines[0]
	if !matchesAny(spec, header) {
		return invalidf(kind, "diagram must start with the %s declaration, found %q", spec.keyword, header)
	}

	lines = lines[1:]
	if len(lines) == 0 {
		return invalidf(kind, "diagram has no content after the %s declaration", spec.keyword)
	}
	body := strings.Join(lines, "\n")

	for _, r := range spec.rules {
		if !r.pattern.MatchString(body) {
			return invalidf(kind, "%s", r.reason)
		}
	}

	for _, b := range spec.blocks {
		depth := 0
		for _, line := range lines {
			if b.open.MatchString(line) {
				depth++
			} else if b.close.MatchString(line) {
				depth--
			}
			if depth < 0 {
				break
			}
		}
		if depth != 0 {
			return invalidf(kind, "%s", b.reason)
		}
	}

	if spec.balancedBraces && !bracesBalanced(spec, body) {
		return invalidf(kind, "unbalanced braces in %s body", spec.keyword)
	}

	return nil
}

func Valid(text string, kind Kind) bool {
	return Check(text, kind) == nil
}

// significantLines returns the trimmed lines of text that are neither blank
// nor %% comments.
func significantLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func matchesAny(spec *kindSpec, line string) bool {
	for _, re := range spec.headers {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func bracesBalanced(spec *kindSpec, body string) bool {
	// Relationship tokens such as ||--o{ contain braces of their own.
	for _, r := range spec.rules {
		body = r.pattern.ReplaceAllString(body, " ")
	}
	depth := 0
	for _, c := range body {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
