package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		status        string
		stderr        string
		compileOutput string
		wantKind      domain.FailureKind
		wantMessage   string
	}{
		{"accepted", "Accepted", "", "", domain.FailureNone, "Accepted"},
		{"syntax error in stderr", "Runtime Error (NZEC)", "SyntaxError: invalid syntax", "", domain.FailureCompile, "Compilation Error: SyntaxError: invalid syntax"},
		{"indentation", "Wrong Answer", "IndentationError: unexpected indent", "", domain.FailureCompile, "Compilation Error: IndentationError: unexpected indent"},
		{"compile output verbatim", "Compilation Error", "", "main.cpp:3: error: expected ';'", domain.FailureCompile, "Compilation Error: main.cpp:3: error: expected ';'"},
		{"time limit", "Time Limit Exceeded", "", "", domain.FailureTimeout, "Time Limit Exceeded"},
		{"tle token", "TLE", "", "", domain.FailureTimeout, "Time Limit Exceeded"},
		{"memory", "Memory Limit Exceeded", "", "", domain.FailureMemory, "Memory Limit Exceeded"},
		{"mle token", "MLE", "", "", domain.FailureMemory, "Memory Limit Exceeded"},
		{"runtime", "Runtime Error (NZEC)", "IndexError: list index out of range", "", domain.FailureRuntime, "Runtime Error: IndexError: list index out of range"},
		{"wrong answer", "Wrong Answer", "", "", domain.FailureGeneric, "Wrong Answer"},
		{"unknown status kept", "Output Limit", "", "", domain.FailureGeneric, "Output Limit"},
		{"empty status", "", "", "", domain.FailureGeneric, "Wrong Answer"},
		{"title is not tle", "Wrong Answer", "print(title)", "", domain.FailureGeneric, "Wrong Answer: print(title)"},
		{"accepted lowercase is not a pass", "accepted", "", "", domain.FailureGeneric, "accepted"},
		{"padded accepted is not a pass", " Accepted", "", "", domain.FailureGeneric, " Accepted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, msg := Classify(tt.status, tt.stderr, tt.compileOutput)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantMessage, msg)
		})
	}
}
