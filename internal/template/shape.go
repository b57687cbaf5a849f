package template

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags the shape a template payload arrived in.
type Kind int

const (
	// KindNone is an absent, null or unusable payload
	KindNone Kind = iota
	// KindText is a plain string; it may itself hold encoded JSON
	KindText
	// KindRecords is an array of {language, languageId, templateCode}
	KindRecords
	// KindObject is a mapping keyed by language, or a single record
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindRecords:
		return "records"
	case KindObject:
		return "object"
	default:
		return "none"
	}
}

// Entry is one key/value pair of a JSON object, in document order.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// Shape is the tagged union every template payload is normalized into.
// Exactly one of Text, Records or Entries is meaningful, per Kind.
type Shape struct {
	Kind    Kind
	Text    string
	Records []json.RawMessage
	Entries []Entry
}

// Classify decodes a raw payload into its Shape. Object keys keep their
// document order so that resolution is deterministic.
func Classify(raw json.RawMessage) Shape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Shape{Kind: KindNone}
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Shape{Kind: KindNone}
		}
		return Shape{Kind: KindText, Text: s}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Shape{Kind: KindNone}
		}
		return Shape{Kind: KindRecords, Records: items}
	case '{':
		entries, err := decodeObject(trimmed)
		if err != nil {
			return Shape{Kind: KindNone}
		}
		return Shape{Kind: KindObject, Entries: entries}
	}
	return Shape{Kind: KindNone}
}

// field returns the value of the first entry named name.
func (s Shape) field(name string) (json.RawMessage, bool) {
	for _, e := range s.Entries {
		if e.Key == name {
			return e.Value, true
		}
	}
	return nil, false
}

// decodeObject reads a JSON object preserving key order.
func decodeObject(data []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object")
	}

	var entries []Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseEmbedded interprets a string as encoded JSON when it holds an object,
// an array or a quoted string. ok is false when the text is not JSON of
// those kinds and must be used verbatim.
func parseEmbedded(s string) (Shape, bool) {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 {
		return Shape{}, false
	}
	switch trimmed[0] {
	case '{', '[', '"':
	default:
		return Shape{}, false
	}
	if !json.Valid(trimmed) {
		return Shape{}, false
	}
	shape := Classify(trimmed)
	if shape.Kind == KindNone {
		return Shape{}, false
	}
	return shape, true
}
