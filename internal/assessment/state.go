package assessment

import (
	"fmt"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

// State is the orchestrator state for one editing session
type State string

const (
	StateIdle            State = "idle"
	StateRunning         State = "running"
	StateAllPassed       State = "all_passed"
	StateSomeFailed      State = "some_failed"
	StateSubmitting      State = "submitting"
	StateAccepted        State = "accepted"
	StatePartiallyFailed State = "partially_failed"
)

// ConsoleTab is the execution context shown under the editor
type ConsoleTab string

const (
	TabTestCases ConsoleTab = "testcases"
	TabCustom    ConsoleTab = "custom"
)

// ParseConsoleTab validates a tab name
func ParseConsoleTab(s string) (ConsoleTab, error) {
	switch ConsoleTab(s) {
	case TabTestCases, TabCustom:
		return ConsoleTab(s), nil
	}
	return "", fmt.Errorf("%w: %w: %q", domain.ErrValidation, domain.ErrInvalidTab, s)
}

// Messages shown to the learner
const (
	msgRunError    = "Error running code. Please try again."
	msgSubmitError = "Error submitting code. Please try again."
)
