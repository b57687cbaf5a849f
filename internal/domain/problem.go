package domain

import (
	"encoding/json"
	"fmt"
)

// ProblemDefinition is a coding problem as served by the content service.
// It is read-only for the engine.
type ProblemDefinition struct {
	ID              string          `json:"id"`
	CourseID        string          `json:"courseId,omitempty"`
	Title           string          `json:"title"`
	Difficulty      Difficulty      `json:"difficulty"`
	Statement       string          `json:"statement"`
	InputFormat     string          `json:"inputFormat,omitempty"`
	OutputFormat    string          `json:"outputFormat,omitempty"`
	Constraints     string          `json:"constraints,omitempty"`
	SampleInput     string          `json:"sampleInput"`
	SampleOutput    string          `json:"sampleOutput"`
	DefaultLanguage string          `json:"defaultLanguage,omitempty"`
	TemplateCode    json.RawMessage `json:"templateCode,omitempty"`
	TestCases       []TestCaseSpec  `json:"testCases"`
}

// Difficulty represents problem difficulty
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TestCaseSpec is one fixed (input, expected output) pair of a problem.
type TestCaseSpec struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// UnmarshalJSON accepts the expected output under any of the names the
// content service has used: expectedOutput, expected_output or output.
func (t *TestCaseSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Input          *string `json:"input"`
		ExpectedOutput *string `json:"expectedOutput"`
		ExpectedSnake  *string `json:"expected_output"`
		Output         *string `json:"output"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode test case: %w", err)
	}

	*t = TestCaseSpec{}
	if raw.Input != nil {
		t.Input = *raw.Input
	}
	switch {
	case raw.ExpectedOutput != nil:
		t.ExpectedOutput = *raw.ExpectedOutput
	case raw.ExpectedSnake != nil:
		t.ExpectedOutput = *raw.ExpectedSnake
	case raw.Output != nil:
		t.ExpectedOutput = *raw.Output
	}
	return nil
}

// ProblemKey identifies a problem within a course.
type ProblemKey struct {
	CourseID  string `json:"course_id"`
	ProblemID string `json:"problem_id"`
}

// String returns "course/problem"
func (k ProblemKey) String() string {
	return k.CourseID + "/" + k.ProblemID
}

// Validate checks that both parts are present
func (k ProblemKey) Validate() error {
	if k.CourseID == "" || k.ProblemID == "" {
		return fmt.Errorf("%w: course and problem id are required", ErrValidation)
	}
	return nil
}
