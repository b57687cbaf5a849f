// Package template resolves starter source code from the loosely shaped
// per-language template payloads the content service returns.
package template

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

// maxDepth bounds how many levels of JSON-in-JSON are unwrapped.
const maxDepth = 6

// Resolve returns the starter source for languageID from a raw templateCode
// payload. It returns "" when nothing matches at any level; callers treat
// that as "not ready", never as an empty template.
func Resolve(raw json.RawMessage, languageID string) string {
	m := newMatcher(languageID)
	if m.primary == "" {
		return ""
	}
	return m.resolveShape(Classify(raw), 0)
}

// ResolveValue is Resolve for an already decoded value.
func ResolveValue(v any, languageID string) string {
	switch t := v.(type) {
	case nil:
		return ""
	case json.RawMessage:
		return Resolve(t, languageID)
	case string:
		data, _ := json.Marshal(t)
		return Resolve(data, languageID)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return Resolve(data, languageID)
}

type matcher struct {
	primary   string
	alternate string
}

func newMatcher(languageID string) matcher {
	primary := domain.NormalizeLanguage(languageID)
	return matcher{primary: primary, alternate: domain.AlternateLanguage(primary)}
}

func (m matcher) matches(name string) bool {
	n := domain.NormalizeLanguage(name)
	if n == "" {
		return false
	}
	return n == m.primary || (m.alternate != "" && n == m.alternate)
}

func (m matcher) resolveShape(s Shape, depth int) string {
	if depth > maxDepth {
		return ""
	}
	switch s.Kind {
	case KindText:
		return m.resolveText(s.Text, depth)
	case KindRecords:
		return m.resolveRecords(s.Records, depth)
	case KindObject:
		return m.resolveObject(s, depth)
	}
	return ""
}

// resolveText handles a top-level string: encoded JSON is unwrapped and
// resolved, anything else is the template for every language.
func (m matcher) resolveText(text string, depth int) string {
	shape, ok := parseEmbedded(text)
	if !ok {
		return text
	}
	return m.resolveShape(shape, depth+1)
}

func (m matcher) resolveRecords(items []json.RawMessage, depth int) string {
	for _, item := range items {
		rec := Classify(item)
		if rec.Kind != KindObject {
			continue
		}
		lang, ok := stringField(rec, "language")
		if !ok || !m.matches(lang) {
			continue
		}
		value, ok := templateField(rec)
		if !ok {
			return ""
		}
		return m.resolveMatched(value, depth+1)
	}
	return ""
}

func (m matcher) resolveObject(s Shape, depth int) string {
	for _, e := range s.Entries {
		if !m.matches(e.Key) {
			continue
		}
		return m.resolveMatched(e.Value, depth+1)
	}
	return ""
}

// resolveMatched extracts the template from a value already selected for
// the language: a string, a record exposing templateCode/template, or either
// of those encoded as JSON.
func (m matcher) resolveMatched(value json.RawMessage, depth int) string {
	if depth > maxDepth {
		return ""
	}
	s := Classify(value)
	switch s.Kind {
	case KindText:
		embedded, ok := parseEmbedded(s.Text)
		if !ok {
			return s.Text
		}
		return m.resolveEmbedded(embedded, depth+1)
	case KindObject:
		if inner, ok := templateField(s); ok {
			return m.resolveMatched(inner, depth+1)
		}
		return m.resolveObject(s, depth+1)
	case KindRecords:
		return m.resolveRecords(s.Records, depth+1)
	}
	return ""
}

func (m matcher) resolveEmbedded(s Shape, depth int) string {
	switch s.Kind {
	case KindText:
		return s.Text
	case KindObject:
		if inner, ok := templateField(s); ok {
			return m.resolveMatched(inner, depth+1)
		}
		return m.resolveObject(s, depth+1)
	case KindRecords:
		return m.resolveRecords(s.Records, depth+1)
	}
	return ""
}

// Languages derives the language options offered by a templateCode payload,
// in document order, deduplicated by canonical id. A bare string template
// applies to every language in the judge table.
func Languages(raw json.RawMessage) []domain.LanguageOption {
	return LanguagesWithTable(raw, domain.JudgeLanguageIDs)
}

// LanguagesWithTable is Languages with a custom judge id table. A languageId
// nested in the payload still takes precedence over the table. Languages
// with no judge id from either source are not offered.
func LanguagesWithTable(raw json.RawMessage, table map[string]int) []domain.LanguageOption {
	var options []domain.LanguageOption
	seen := make(map[string]bool)

	add := func(name string, judgeID int) {
		id := domain.CanonicalLanguage(name)
		if id == "" || seen[id] {
			return
		}
		if judgeID == 0 {
			judgeID = table[id]
		}
		// Nothing could be sent to the judge for it
		if judgeID == 0 {
			return
		}
		seen[id] = true
		options = append(options, domain.LanguageOption{
			ID:              id,
			DisplayName:     displayName(name, id),
			JudgeLanguageID: judgeID,
			Template:        Resolve(raw, id),
		})
	}

	collect(Classify(raw), add, 0)
	return options
}

func collect(s Shape, add func(name string, judgeID int), depth int) {
	if depth > maxDepth {
		return
	}
	switch s.Kind {
	case KindText:
		if embedded, ok := parseEmbedded(s.Text); ok {
			collect(embedded, add, depth+1)
			return
		}
		if strings.TrimSpace(s.Text) == "" {
			return
		}
		for _, lang := range tableOrder {
			add(lang, 0)
		}
	case KindRecords:
		for _, item := range s.Records {
			rec := Classify(item)
			if rec.Kind != KindObject {
				continue
			}
			lang, ok := stringField(rec, "language")
			if !ok {
				continue
			}
			add(lang, intField(rec, "languageId"))
		}
	case KindObject:
		for _, e := range s.Entries {
			add(e.Key, nestedLanguageID(e.Value))
		}
	}
}

// tableOrder is the fixed order used when a template applies to every language.
var tableOrder = []string{
	domain.LanguageJavaScript,
	domain.LanguageTypeScript,
	domain.LanguagePython,
	domain.LanguageJava,
	domain.LanguageCPP,
}

func displayName(name, id string) string {
	if known := domain.DisplayName(id); known != id {
		return known
	}
	return strings.TrimSpace(name)
}

func nestedLanguageID(value json.RawMessage) int {
	s := Classify(value)
	if s.Kind == KindText {
		embedded, ok := parseEmbedded(s.Text)
		if !ok {
			return 0
		}
		s = embedded
	}
	if s.Kind != KindObject {
		return 0
	}
	return intField(s, "languageId")
}

func templateField(s Shape) (json.RawMessage, bool) {
	if v, ok := s.field("templateCode"); ok {
		return v, true
	}
	return s.field("template")
}

func stringField(s Shape, name string) (string, bool) {
	raw, ok := s.field(name)
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// intField reads a number or a numeric string.
func intField(s Shape, name string) int {
	raw, ok := s.field(name)
	if !ok {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
			return i
		}
	}
	return 0
}

// TableLanguages offers every language of the judge table, in fixed order,
// with no template. Used when a problem declares no templates at all.
func TableLanguages(table map[string]int) []domain.LanguageOption {
	options := make([]domain.LanguageOption, 0, len(tableOrder))
	for _, id := range tableOrder {
		if judgeID, ok := table[id]; ok {
			options = append(options, domain.LanguageOption{
				ID:              id,
				DisplayName:     domain.DisplayName(id),
				JudgeLanguageID: judgeID,
			})
		}
	}
	return options
}
