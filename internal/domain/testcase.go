package domain

// CaseStatus is the execution state of one test case
type CaseStatus string

const (
	CaseUnset   CaseStatus = ""
	CaseRunning CaseStatus = "running"
	CasePassed  CaseStatus = "passed"
	CaseFailed  CaseStatus = "failed"
)

// IsDefined reports whether a status has been set
func (s CaseStatus) IsDefined() bool {
	return s != CaseUnset
}

// StatusAccepted is the only judge status that counts as a pass.
const StatusAccepted = "Accepted"

// TestCase is one row of the test-case ledger. Optional fields are pointers
// so that "absent" is distinguishable from an empty value.
type TestCase struct {
	Index          int        `json:"index"`
	Input          string     `json:"input"`
	ExpectedOutput string     `json:"expectedOutput"`
	UserOutput     *string    `json:"userOutput,omitempty"`
	Status         CaseStatus `json:"status,omitempty"`
	ElapsedTime    *string    `json:"elapsedTime,omitempty"`
	MemoryKB       *float64   `json:"memoryKb,omitempty"`
	Stderr         *string    `json:"stderr,omitempty"`
	CompileOutput  *string    `json:"compileOutput,omitempty"`
	Verdict        *string    `json:"verdict,omitempty"`
}

// CustomRun is the ad hoc custom-input channel. It never feeds the
// pass/fail aggregate.
type CustomRun struct {
	Input         string     `json:"input"`
	Stdout        *string    `json:"stdout,omitempty"`
	UserOutput    *string    `json:"userOutput,omitempty"`
	Status        CaseStatus `json:"status,omitempty"`
	ElapsedTime   *string    `json:"elapsedTime,omitempty"`
	MemoryKB      *float64   `json:"memoryKb,omitempty"`
	Stderr        *string    `json:"stderr,omitempty"`
	CompileOutput *string    `json:"compileOutput,omitempty"`
	Verdict       *string    `json:"verdict,omitempty"`
}

// CaseResult is the judge's outcome for one fixed test case.
type CaseResult struct {
	TestCaseIndex  int      `json:"testCaseIndex"`
	Input          string   `json:"input"`
	ExpectedOutput string   `json:"expectedOutput"`
	ActualOutput   string   `json:"actualOutput"`
	Status         string   `json:"status"`
	Verdict        string   `json:"verdict,omitempty"`
	Stderr         string   `json:"stderr,omitempty"`
	CompileOutput  string   `json:"compileOutput,omitempty"`
	ElapsedTime    string   `json:"elapsedTime,omitempty"`
	MemoryKB       *float64 `json:"memoryKb,omitempty"`
}

// Passed is true only for the exact judge status "Accepted".
func (r CaseResult) Passed() bool {
	return r.Status == StatusAccepted
}

// CustomRunResult is the judge's outcome for a custom stdin run.
type CustomRunResult struct {
	Input         string   `json:"input"`
	ActualOutput  string   `json:"actualOutput"`
	Status        string   `json:"status"`
	Stderr        string   `json:"stderr,omitempty"`
	CompileOutput string   `json:"compileOutput,omitempty"`
	ElapsedTime   string   `json:"elapsedTime,omitempty"`
	MemoryKB      *float64 `json:"memoryKb,omitempty"`
}

// Passed is true only for the exact judge status "Accepted".
func (r CustomRunResult) Passed() bool {
	return r.Status == StatusAccepted
}

// SubmitResult is the judge's authoritative scoring of a submission.
type SubmitResult struct {
	Status         string `json:"status"`
	TotalTestCases int    `json:"totalTestCases"`
	PassedCount    int    `json:"passed"`
	FailedCount    int    `json:"failed"`
}

// FullyAccepted reports whether every test case passed per the judge's count.
func (r SubmitResult) FullyAccepted() bool {
	if r.TotalTestCases > 0 {
		return r.FailedCount == 0 && r.PassedCount == r.TotalTestCases
	}
	return r.Status == StatusAccepted && r.FailedCount == 0
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
