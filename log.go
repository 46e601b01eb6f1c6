package gonewton

import (
	"fmt"
	"strings"
)

// Log renders the trajectory one line per visited point.
func (s *Session) Log() []string {
	lines := make([]string, 0, len(s.History))
	for i, p := range s.History {
		lines = append(lines, fmt.Sprintf("n=%-3d x=% .10f  f(x)=% .6e", i, p.X, p.Y))
	}
	return lines
}

// Markdown renders the trajectory as a markdown table.
func (s *Session) Markdown(p Params) string {
	var sb strings.Builder
	sb.WriteString("## Newton's Method\n\n")
	fmt.Fprintf(&sb, "- f(x) = `%s`\n", p.Function)
	if p.Derivative != "" {
		fmt.Fprintf(&sb, "- f'(x) = `%s`\n", p.Derivative)
	} else if d, err := Derive(p.Function); err == nil {
		fmt.Fprintf(&sb, "- f'(x) = `%s` (derived)\n", d)
	}
	fmt.Fprintf(&sb, "- iterations: %d / %d\n\n", s.Iterations, p.MaxIterations)
	if len(s.History) == 0 {
		sb.WriteString("_No steps yet._\n")
		return sb.String()
	}
	sb.WriteString("| n | x | f(x) |\n|---|---|---|\n")
	for i, pt := range s.History {
		fmt.Fprintf(&sb, "| %d | %.10f | %.6e |\n", i, pt.X, pt.Y)
	}
	return sb.String()
}
