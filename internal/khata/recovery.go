// recovery.go - Turn a free-text model reply into extracted marks

package khata

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// knownListKeys are the object keys a model wraps its row array under
var knownListKeys = []string{"extractedMarks", "marks", "students", "records", "data", "results"}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// payload is what a successful strategy yields
type payload struct {
	Marks    []ExtractedMark
	Warnings []string
}

// Strategy locates and decodes one shape of reply. Strategies are pure.
type Strategy struct {
	Name string
	Find func(text string) (payload, bool)
}

// Strategies are tried in order; the first that decodes wins
var Strategies = []Strategy{
	{Name: "direct", Find: recoverDirect},
	{Name: "array", Find: recoverArray},
	{Name: "object", Find: recoverObject},
	{Name: "nested", Find: recoverNested},
	{Name: "fence", Find: recoverFence},
	{Name: "span", Find: recoverSpan},
}

// Recovery is the outcome of Recover. Raw is always the untouched input.
type Recovery struct {
	Marks    []ExtractedMark
	Warnings []string
	Strategy string
	Raw      string
	OK       bool
}

// Recover runs every strategy in order against text
func Recover(text string) Recovery {
	rec := Recovery{Raw: text}
	if strings.TrimSpace(text) == "" {
		return rec
	}

	for _, s := range Strategies {
		p, ok := s.Find(text)
		if !ok {
			continue
		}
		rec.Marks = p.Marks
		rec.Warnings = p.Warnings
		rec.Strategy = s.Name
		rec.OK = true
		if rec.Marks == nil {
			rec.Marks = []ExtractedMark{}
		}
		return rec
	}
	return rec
}

func recoverDirect(text string) (payload, bool) {
	return decodePayload(strings.TrimSpace(text))
}

// recoverArray tries each top-level balanced [...] in turn. Objects are
// stepped over whole so an array nested in a wrapper is left to recoverObject.
func recoverArray(text string) (payload, bool) {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if end := balancedEnd(text, i); end > 0 {
				i = end - 1
			}
		case '[':
			end := balancedEnd(text, i)
			if end < 0 {
				continue
			}
			if p, ok := decodeList(text[i:end]); ok {
				return p, true
			}
		}
	}
	return payload{}, false
}

func recoverObject(text string) (payload, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := balancedEnd(text, i)
		if end < 0 {
			continue
		}
		if p, ok := decodeWrapper(text[i:end]); ok {
			return p, true
		}
	}
	return payload{}, false
}

// recoverNested descends into objects for a row array under any key. Only
// arrays holding at least one row with a name or roll count, so lists of
// unrelated objects are not mistaken for marks.
func recoverNested(text string) (payload, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		end := balancedEnd(text, i)
		if end < 0 {
			continue
		}
		p, ok := decodeList(text[i:end])
		if ok && hasRow(p.Marks) {
			return p, true
		}
	}
	return payload{}, false
}

func hasRow(marks []ExtractedMark) bool {
	for _, m := range marks {
		if strings.TrimSpace(m.Name) != "" || strings.TrimSpace(m.RollNumber) != "" {
			return true
		}
	}
	return false
}

// recoverFence and recoverSpan rarely win: a fenced or spanned payload that
// decodes is normally reached first by the bracket scans above
func recoverFence(text string) (payload, bool) {
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		if p, ok := decodePayload(strings.TrimSpace(m[1])); ok {
			return p, true
		}
	}
	return payload{}, false
}

// recoverSpan takes everything from the first opener to the last closer
func recoverSpan(text string) (payload, bool) {
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "}]")
	if start < 0 || end <= start {
		return payload{}, false
	}
	return decodePayload(text[start : end+1])
}

// balancedEnd returns the index just past the bracket closing text[start],
// or -1. Brackets inside JSON strings are ignored.
func balancedEnd(text string, start int) int {
	open := text[start]
	var closer byte
	switch open {
	case '[':
		closer = ']'
	case '{':
		closer = '}'
	default:
		return -1
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// decodePayload accepts either a bare row array or a wrapper object
func decodePayload(candidate string) (payload, bool) {
	if candidate == "" {
		return payload{}, false
	}
	switch candidate[0] {
	case '[':
		return decodeList(candidate)
	case '{':
		return decodeWrapper(candidate)
	}
	return payload{}, false
}

func decodeList(candidate string) (payload, bool) {
	var marks []ExtractedMark
	if !unmarshalLenient(candidate, &marks) {
		return payload{}, false
	}
	return payload{Marks: marks}, true
}

func decodeWrapper(candidate string) (payload, bool) {
	var fields map[string]json.RawMessage
	if !unmarshalLenient(candidate, &fields) {
		return payload{}, false
	}

	for _, key := range knownListKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var marks []ExtractedMark
		if err := json.Unmarshal(raw, &marks); err != nil {
			continue
		}
		p := payload{Marks: marks}
		if w, ok := fields["warnings"]; ok {
			_ = json.Unmarshal(w, &p.Warnings)
		}
		return p, true
	}
	return payload{}, false
}

// unmarshalLenient retries once with control characters inside strings escaped
func unmarshalLenient(candidate string, v interface{}) bool {
	if err := json.Unmarshal([]byte(candidate), v); err == nil {
		return true
	}
	fixed := fixJSONEscaping(candidate)
	if fixed == candidate {
		return false
	}
	return json.Unmarshal([]byte(fixed), v) == nil
}

// fixJSONEscaping escapes raw newlines, carriage returns and tabs that a model
// left inside string literals
func fixJSONEscaping(s string) string {
	var b bytes.Buffer
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		if escaped {
			escaped = false
			b.WriteByte(c)
			continue
		}
		switch c {
		case '\\':
			escaped = true
			b.WriteByte(c)
		case '"':
			inString = false
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
