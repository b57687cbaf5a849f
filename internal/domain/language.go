package domain

import (
	"strings"
	"unicode"
)

// LanguageOption is a language the learner can pick for a problem.
// Options are derived once from the problem's template mapping.
type LanguageOption struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	JudgeLanguageID int    `json:"judgeLanguageId"`
	Template        string `json:"template"`
}

// Canonical language ids
const (
	LanguageJavaScript = "javascript"
	LanguageTypeScript = "typescript"
	LanguagePython     = "python"
	LanguageJava       = "java"
	LanguageCPP        = "cpp"
)

// JudgeLanguageIDs is the fixed table used when talking to the judge.
// A problem-provided languageId takes precedence over it.
var JudgeLanguageIDs = map[string]int{
	LanguageJavaScript: 63,
	LanguageTypeScript: 74,
	LanguagePython:     71,
	LanguageJava:       62,
	LanguageCPP:        54,
}

var displayNames = map[string]string{
	LanguageJavaScript: "JavaScript",
	LanguageTypeScript: "TypeScript",
	LanguagePython:     "Python",
	LanguageJava:       "Java",
	LanguageCPP:        "C++",
}

// NormalizeLanguage lowercases s and strips all whitespace.
func NormalizeLanguage(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// AlternateLanguage returns the equivalent spelling of a normalized id, or ""
// when the id has none.
func AlternateLanguage(normalized string) string {
	switch normalized {
	case "cpp":
		return "c++"
	case "c++":
		return "cpp"
	case "python":
		return "python3"
	case "python3":
		return "python"
	}
	return ""
}

// CanonicalLanguage maps any accepted spelling to the canonical id.
func CanonicalLanguage(s string) string {
	n := NormalizeLanguage(s)
	switch n {
	case "c++":
		return LanguageCPP
	case "python3":
		return LanguagePython
	}
	return n
}

// LanguagesEqual reports whether a and b name the same language.
func LanguagesEqual(a, b string) bool {
	na, nb := NormalizeLanguage(a), NormalizeLanguage(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || AlternateLanguage(na) == nb
}

// DisplayName returns a human name for a language id
func DisplayName(lang string) string {
	if name, ok := displayNames[CanonicalLanguage(lang)]; ok {
		return name
	}
	return lang
}

// FindLanguage returns the option matching lang under alias equivalence.
func FindLanguage(options []LanguageOption, lang string) (LanguageOption, bool) {
	for _, opt := range options {
		if LanguagesEqual(opt.ID, lang) {
			return opt, true
		}
	}
	return LanguageOption{}, false
}
