package domain

// FailureKind classifies a non-accepted judge outcome for display. It never
// decides pass/fail; only StatusAccepted does.
type FailureKind string

const (
	FailureNone    FailureKind = ""
	FailureCompile FailureKind = "compile_error"
	FailureTimeout FailureKind = "timeout"
	FailureMemory  FailureKind = "memory_limit"
	FailureRuntime FailureKind = "runtime_error"
	FailureGeneric FailureKind = "failed"
)

// Title returns the heading shown for the kind
func (k FailureKind) Title() string {
	switch k {
	case FailureNone:
		return StatusAccepted
	case FailureCompile:
		return "Compilation Error"
	case FailureTimeout:
		return "Time Limit Exceeded"
	case FailureMemory:
		return "Memory Limit Exceeded"
	case FailureRuntime:
		return "Runtime Error"
	default:
		return "Wrong Answer"
	}
}
