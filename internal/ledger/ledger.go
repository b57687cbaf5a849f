// Package ledger keeps the table of fixed test cases for one problem and
// their latest execution results.
package ledger

import (
	"fmt"

	"github.com/felixgeelhaar/codelab/internal/domain"
	"github.com/felixgeelhaar/codelab/internal/judge"
)

// Ledger is the per-problem test-case table. It is not safe for concurrent
// use; the owning session serializes access.
type Ledger struct {
	cases  []domain.TestCase
	active int
}

// New creates a ledger with one unset case per spec, indexed from 1
func New(specs []domain.TestCaseSpec) *Ledger {
	cases := make([]domain.TestCase, len(specs))
	for i, s := range specs {
		cases[i] = domain.TestCase{
			Index:          i + 1,
			Input:          s.Input,
			ExpectedOutput: s.ExpectedOutput,
		}
	}
	return &Ledger{cases: cases}
}

// Len returns the number of cases
func (l *Ledger) Len() int {
	return len(l.cases)
}

// MarkAllRunning clears previous results and marks every case running
func (l *Ledger) MarkAllRunning() {
	for i := range l.cases {
		clearResult(&l.cases[i])
		l.cases[i].Status = domain.CaseRunning
	}
}

// Replace overwrites the ledger from an ordered run response. Results are
// matched by position; cases past the end of the response are left unset and
// extra results are ignored.
func (l *Ledger) Replace(results []domain.CaseResult) {
	for i := range l.cases {
		c := &l.cases[i]
		clearResult(c)
		if i >= len(results) {
			continue
		}
		r := results[i]

		c.UserOutput = domain.StringPtr(r.ActualOutput)
		c.ElapsedTime = optional(r.ElapsedTime)
		c.MemoryKB = r.MemoryKB
		c.Stderr = optional(r.Stderr)
		c.CompileOutput = optional(r.CompileOutput)

		if r.Passed() {
			c.Status = domain.CasePassed
			c.Verdict = domain.StringPtr(domain.StatusAccepted)
			continue
		}
		c.Status = domain.CaseFailed
		verdict := r.Verdict
		if verdict == "" {
			_, verdict = judge.Classify(r.Status, r.Stderr, r.CompileOutput)
		}
		c.Verdict = domain.StringPtr(verdict)
	}
}

// ResetStatuses returns every case to unset, keeping input and expected
// output. Used when the execution context changes.
func (l *Ledger) ResetStatuses() {
	for i := range l.cases {
		clearResult(&l.cases[i])
	}
}

// RevertRunning returns cases stuck in running to unset after a failed run
func (l *Ledger) RevertRunning() {
	for i := range l.cases {
		if l.cases[i].Status == domain.CaseRunning {
			clearResult(&l.cases[i])
		}
	}
}

// AllPassed is true iff the ledger is non-empty, at least one case has a
// status and every case passed.
func (l *Ledger) AllPassed() bool {
	if len(l.cases) == 0 {
		return false
	}
	defined := false
	for _, c := range l.cases {
		if c.Status.IsDefined() {
			defined = true
		}
		if c.Status != domain.CasePassed {
			return false
		}
	}
	return defined
}

// Counts returns the number of passed and failed cases
func (l *Ledger) Counts() (passed, failed int) {
	for _, c := range l.cases {
		switch c.Status {
		case domain.CasePassed:
			passed++
		case domain.CaseFailed:
			failed++
		}
	}
	return passed, failed
}

// SetActive selects the displayed case by 1-based index. It never triggers
// execution.
func (l *Ledger) SetActive(index int) error {
	if index < 1 || index > len(l.cases) {
		return fmt.Errorf("%w: test case %d out of range 1..%d", domain.ErrValidation, index, len(l.cases))
	}
	l.active = index - 1
	return nil
}

// Active returns the displayed case
func (l *Ledger) Active() (domain.TestCase, bool) {
	if len(l.cases) == 0 {
		return domain.TestCase{}, false
	}
	return l.cases[l.active], true
}

// ActiveIndex returns the 1-based index of the displayed case, 0 if empty
func (l *Ledger) ActiveIndex() int {
	if len(l.cases) == 0 {
		return 0
	}
	return l.active + 1
}

// Summary is the status line shown next to the editor for one case
type Summary struct {
	Index   int                `json:"index"`
	Status  domain.CaseStatus  `json:"status,omitempty"`
	Kind    domain.FailureKind `json:"kind,omitempty"`
	Message string             `json:"message"`
}

// ActiveSummary derives the status text for the displayed case
func (l *Ledger) ActiveSummary() Summary {
	c, ok := l.Active()
	if !ok {
		return Summary{Message: "No test cases"}
	}
	return Summarize(c)
}

// Summarize derives the status text for one case
func Summarize(c domain.TestCase) Summary {
	s := Summary{Index: c.Index, Status: c.Status}
	switch c.Status {
	case domain.CaseRunning:
		s.Message = "Running..."
	case domain.CasePassed:
		s.Message = domain.StatusAccepted
	case domain.CaseFailed:
		status := ""
		if c.Verdict != nil {
			status = *c.Verdict
		}
		s.Kind, _ = judge.Classify(status, deref(c.Stderr), deref(c.CompileOutput))
		s.Message = status
		if s.Message == "" {
			s.Message = s.Kind.Title()
		}
	default:
		s.Message = "Not run"
	}
	return s
}

// Snapshot returns a copy of the cases
func (l *Ledger) Snapshot() []domain.TestCase {
	out := make([]domain.TestCase, len(l.cases))
	copy(out, l.cases)
	return out
}

func clearResult(c *domain.TestCase) {
	c.UserOutput = nil
	c.Status = domain.CaseUnset
	c.ElapsedTime = nil
	c.MemoryKB = nil
	c.Stderr = nil
	c.CompileOutput = nil
	c.Verdict = nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
