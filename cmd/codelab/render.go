package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/codelab/internal/assessment"
	"github.com/felixgeelhaar/codelab/internal/domain"
)

// printView renders a session view for the terminal
func printView(w io.Writer, v *assessment.View, withCode bool) {
	fmt.Fprintf(w, "%s  %s", v.Problem, v.Title)
	if v.Difficulty != "" {
		fmt.Fprintf(w, " (%s)", v.Difficulty)
	}
	fmt.Fprintln(w)

	langs := make([]string, 0, len(v.Languages))
	for _, l := range v.Languages {
		name := l.ID
		if l.ID == v.Language {
			name = "[" + name + "]"
		}
		langs = append(langs, name)
	}
	fmt.Fprintf(w, "Language: %s\n", strings.Join(langs, " "))
	fmt.Fprintf(w, "State:    %s\n", v.State)

	if withCode {
		fmt.Fprintln(w)
		if !v.TemplateOK {
			fmt.Fprintln(w, "  (no starter code for this language)")
		}
		for _, line := range strings.Split(v.Code, "\n") {
			fmt.Fprintf(w, "  | %s\n", line)
		}
	}

	if v.Tab == assessment.TabCustom {
		printCustom(w, v.Custom)
	} else {
		printCases(w, v)
	}

	if v.Submission != nil {
		fmt.Fprintf(w, "\nSubmission: %s %d/%d passed\n", v.Submission.Status, v.Submission.PassedCount, v.Submission.TotalTestCases)
	}
	if v.Message != "" {
		fmt.Fprintf(w, "\n%s\n", v.Message)
	}

	switch {
	case v.Cooldown > 0:
		fmt.Fprintf(w, "Next submission in %ds\n", v.Cooldown)
	case v.CanSubmit:
		fmt.Fprintln(w, "Ready to submit (codelab submit)")
	}
}

func printCases(w io.Writer, v *assessment.View) {
	if len(v.Cases) == 0 {
		fmt.Fprintln(w, "\nNo test cases")
		return
	}

	fmt.Fprintln(w)
	passed := 0
	for _, c := range v.Cases {
		marker := " "
		if c.Index == v.ActiveCase {
			marker = ">"
		}
		if c.Status == domain.CasePassed {
			passed++
		}
		fmt.Fprintf(w, "%s %s Case %d\n", marker, statusIcon(c.Status), c.Index)
	}
	fmt.Fprintf(w, "%s %d/%d\n", renderProgressBar(float64(passed)/float64(len(v.Cases)), 20), passed, len(v.Cases))

	for _, c := range v.Cases {
		if c.Index != v.ActiveCase {
			continue
		}
		fmt.Fprintf(w, "\nCase %d: %s\n", c.Index, v.Summary.Message)
		fmt.Fprintf(w, "  Input:    %s\n", oneLine(c.Input))
		fmt.Fprintf(w, "  Expected: %s\n", oneLine(c.ExpectedOutput))
		if c.UserOutput != nil {
			fmt.Fprintf(w, "  Output:   %s\n", oneLine(*c.UserOutput))
		}
		if c.ElapsedTime != nil {
			fmt.Fprintf(w, "  Time:     %s\n", *c.ElapsedTime)
		}
		if c.CompileOutput != nil {
			fmt.Fprintf(w, "  Compile:\n%s\n", indent(*c.CompileOutput))
		}
		if c.Stderr != nil {
			fmt.Fprintf(w, "  Stderr:\n%s\n", indent(*c.Stderr))
		}
	}
}

func printCustom(w io.Writer, c domain.CustomRun) {
	fmt.Fprintln(w, "\nCustom input:")
	fmt.Fprintln(w, indent(c.Input))
	if c.Status == domain.CaseRunning {
		fmt.Fprintln(w, "Running...")
		return
	}
	if c.Stdout != nil {
		fmt.Fprintf(w, "Output (%s):\n%s\n", deref(c.Verdict), indent(*c.Stdout))
	}
	if c.CompileOutput != nil {
		fmt.Fprintf(w, "Compile:\n%s\n", indent(*c.CompileOutput))
	}
	if c.Stderr != nil {
		fmt.Fprintf(w, "Stderr:\n%s\n", indent(*c.Stderr))
	}
}

func statusIcon(s domain.CaseStatus) string {
	switch s {
	case domain.CasePassed:
		return "✓"
	case domain.CaseFailed:
		return "✗"
	case domain.CaseRunning:
		return "…"
	}
	return "·"
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}

func oneLine(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\\n")
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
