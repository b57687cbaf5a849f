package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

// The judge has answered in several shapes over time. Everything below maps
// those shapes onto the domain result types in one place.

// object is a decoded JSON object with alias-aware field access
type object map[string]json.RawMessage

// envelopeKeys are wrapper fields some deployments put around the payload
var envelopeKeys = []string{"data", "result"}

// unwrap strips {"data": ...} / {"result": ...} envelopes around a payload
func unwrap(body []byte) []byte {
	for depth := 0; depth < 3; depth++ {
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return trimmed
		}
		var obj object
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return trimmed
		}
		inner, ok := obj.pick(envelopeKeys...)
		if !ok || !isContainer(inner) || obj.hasAny("status", "results", "testCases", "id", "title") {
			return trimmed
		}
		body = inner
	}
	return bytes.TrimSpace(body)
}

func isContainer(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && (t[0] == '{' || t[0] == '[')
}

func (o object) pick(names ...string) (json.RawMessage, bool) {
	for _, n := range names {
		if v, ok := o[n]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func (o object) hasAny(names ...string) bool {
	_, ok := o.pick(names...)
	return ok
}

// text reads a field as a string; numbers are formatted, objects are
// reduced to their description.
func (o object) text(names ...string) string {
	v, ok := o.pick(names...)
	if !ok {
		return ""
	}
	return asText(v)
}

func (o object) number(names ...string) (float64, bool) {
	v, ok := o.pick(names...)
	if !ok {
		return 0, false
	}
	return asNumber(v)
}

func (o object) integer(names ...string) (int, bool) {
	f, ok := o.number(names...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func asText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var obj object
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.text("description", "name", "status", "message")
	}
	return ""
}

func asNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

// Field aliases
var (
	fieldIndex    = []string{"testCaseIndex", "index"}
	fieldInput    = []string{"input", "stdin"}
	fieldExpected = []string{"expectedOutput", "expected_output", "expected"}
	fieldActual   = []string{"actualOutput", "stdout", "output", "userOutput"}
	fieldStatus   = []string{"status", "result"}
	fieldVerdict  = []string{"verdict", "message"}
	fieldStderr   = []string{"stderr", "error"}
	fieldCompile  = []string{"compileOutput", "compile_output"}
	fieldTime     = []string{"elapsedTime", "time", "executionTime"}
	fieldMemory   = []string{"memoryKb", "memory", "memoryUsed"}
	fieldResults  = []string{"results", "testCases", "testResults"}
	fieldTotal    = []string{"totalTestCases", "total", "totalCount"}
	fieldPassed   = []string{"passed", "passedCount", "passedTestCases"}
	fieldFailed   = []string{"failed", "failedCount", "failedTestCases"}
)

// decodeRunResults accepts {results: [...]}, {testCases: [...]} or a bare array.
func decodeRunResults(body []byte) ([]domain.CaseResult, error) {
	items, err := resultItems(unwrap(body))
	if err != nil {
		return nil, err
	}

	results := make([]domain.CaseResult, 0, len(items))
	for i, item := range items {
		var obj object
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, fmt.Errorf("decode result %d: %w", i, err)
		}
		results = append(results, caseResult(obj, i+1))
	}
	return results, nil
}

func resultItems(body []byte) ([]json.RawMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	var items []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		return items, nil
	}

	var obj object
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	raw, ok := obj.pick(fieldResults...)
	if !ok {
		return nil, fmt.Errorf("response has no results")
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return items, nil
}

func caseResult(obj object, position int) domain.CaseResult {
	r := domain.CaseResult{
		TestCaseIndex:  position,
		Input:          obj.text(fieldInput...),
		ExpectedOutput: obj.text(fieldExpected...),
		ActualOutput:   obj.text(fieldActual...),
		Status:         obj.text(fieldStatus...),
		Verdict:        obj.text(fieldVerdict...),
		Stderr:         obj.text(fieldStderr...),
		CompileOutput:  obj.text(fieldCompile...),
		ElapsedTime:    obj.text(fieldTime...),
	}
	if idx, ok := obj.integer(fieldIndex...); ok && idx > 0 {
		r.TestCaseIndex = idx
	}
	if mem, ok := obj.number(fieldMemory...); ok {
		r.MemoryKB = &mem
	}
	if r.Verdict == "" && !r.Passed() {
		_, r.Verdict = Classify(r.Status, r.Stderr, r.CompileOutput)
	}
	return r
}

// decodeCustomResult accepts a bare result object or one wrapped in results.
func decodeCustomResult(body []byte, input string) (*domain.CustomRunResult, error) {
	body = unwrap(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	var obj object
	if body[0] == '[' {
		items, err := resultItems(body)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("response has no results")
		}
		body = items[0]
	} else if err := json.Unmarshal(body, &obj); err == nil {
		if raw, ok := obj.pick(fieldResults...); ok {
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
				body = items[0]
			}
		}
	}

	obj = nil
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode custom result: %w", err)
	}

	r := &domain.CustomRunResult{
		Input:         obj.text(fieldInput...),
		ActualOutput:  obj.text(fieldActual...),
		Status:        obj.text(fieldStatus...),
		Stderr:        obj.text(fieldStderr...),
		CompileOutput: obj.text(fieldCompile...),
		ElapsedTime:   obj.text(fieldTime...),
	}
	if r.Input == "" {
		r.Input = input
	}
	if mem, ok := obj.number(fieldMemory...); ok {
		r.MemoryKB = &mem
	}
	return r, nil
}

// decodeSubmitResult accepts passed/passedCount, failed/failedCount and
// totalTestCases/total. A missing failed count is derived from the others.
func decodeSubmitResult(body []byte) (*domain.SubmitResult, error) {
	var obj object
	if err := json.Unmarshal(unwrap(body), &obj); err != nil {
		return nil, fmt.Errorf("decode submit result: %w", err)
	}

	r := &domain.SubmitResult{
		Status: obj.text(fieldStatus...),
	}
	r.TotalTestCases, _ = obj.integer(fieldTotal...)
	r.PassedCount, _ = obj.integer(fieldPassed...)
	failed, hasFailed := obj.integer(fieldFailed...)
	if hasFailed {
		r.FailedCount = failed
	} else if r.TotalTestCases > 0 {
		r.FailedCount = r.TotalTestCases - r.PassedCount
	}

	// Some deployments return the per-case list instead of counts
	if r.TotalTestCases == 0 && obj.hasAny(fieldResults...) {
		if cases, err := decodeRunResults(body); err == nil {
			r.TotalTestCases = len(cases)
			r.PassedCount, r.FailedCount = 0, 0
			for _, c := range cases {
				if c.Passed() {
					r.PassedCount++
				} else {
					r.FailedCount++
				}
			}
		}
	}
	return r, nil
}

// decodeProblem decodes a ProblemDefinition, tolerating an envelope.
func decodeProblem(body []byte, key domain.ProblemKey) (*domain.ProblemDefinition, error) {
	var p domain.ProblemDefinition
	if err := json.Unmarshal(unwrap(body), &p); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}
	if p.ID == "" {
		p.ID = key.ProblemID
	}
	if p.CourseID == "" {
		p.CourseID = key.CourseID
	}
	return &p, nil
}
