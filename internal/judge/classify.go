package judge

import (
	"regexp"
	"strings"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

var (
	compileWords = regexp.MustCompile(`syntax|indentation|compil`)
	timeoutWords = regexp.MustCompile(`time limit|\btle\b|timed? ?out`)
	memoryWords  = regexp.MustCompile(`memory|\bmle\b`)
	runtimeWords = regexp.MustCompile(`runtime`)
)

// Classify derives the failure kind and a display message from a judge
// outcome. Keywords are searched in stderr, compile output and status, in
// that order of precedence: compile, timeout, memory, runtime.
func Classify(status, stderr, compileOutput string) (domain.FailureKind, string) {
	if status == domain.StatusAccepted {
		return domain.FailureNone, domain.StatusAccepted
	}

	text := strings.ToLower(strings.Join([]string{stderr, compileOutput, status}, "\n"))

	var kind domain.FailureKind
	switch {
	case compileWords.MatchString(text):
		kind = domain.FailureCompile
	case timeoutWords.MatchString(text):
		kind = domain.FailureTimeout
	case memoryWords.MatchString(text):
		kind = domain.FailureMemory
	case runtimeWords.MatchString(text):
		kind = domain.FailureRuntime
	default:
		kind = domain.FailureGeneric
	}

	return kind, message(kind, status, stderr, compileOutput)
}

func message(kind domain.FailureKind, status, stderr, compileOutput string) string {
	detail := ""
	switch kind {
	case domain.FailureCompile:
		detail = firstNonEmpty(compileOutput, stderr)
	case domain.FailureTimeout, domain.FailureMemory:
		detail = ""
	case domain.FailureRuntime:
		detail = stderr
	default:
		if status != "" && !strings.EqualFold(status, kind.Title()) {
			return status
		}
		detail = stderr
	}

	detail = strings.TrimSpace(detail)
	if detail == "" {
		return kind.Title()
	}
	return kind.Title() + ": " + detail
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
