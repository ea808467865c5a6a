package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rights-monitor/backend/internal/storage/models"
)

// Keys of a classification record, as the prompt asks the model to write them.
const (
	KeyRight  = "derecho"
	KeyCount  = "cantidad"
	KeyPlaces = "lugares"
)

// Reasons reported by Invalid.
const (
	ReasonEmpty       = "empty"
	ReasonNoArray     = "no_array"
	ReasonInvalidJSON = "invalid_json"
	ReasonShape       = "invalid_shape"
)

// Outcome is either Valid or Invalid.
type Outcome interface {
	outcome()
}

type Valid struct {
	Results []models.ClassificationResult
}

type Invalid struct {
	Reason string
	Detail string
}

func (Valid) outcome()   {}
func (Invalid) outcome() {}

// Results returns the records of a Valid outcome and an empty slice otherwise.
func Results(o Outcome) []models.ClassificationResult {
	if v, ok := o.(Valid); ok && v.Results != nil {
		return v.Results
	}
	return []models.ClassificationResult{}
}

// Parse extracts the first JSON array from raw model output and validates
// every element as a classification record.
func Parse(raw string) Outcome {
	text := strings.TrimSpace(stripFences(raw))
	if text == "" {
		return Invalid{Reason: ReasonEmpty}
	}

	block, ok := extractArray(text)
	if !ok {
		return Invalid{Reason: ReasonNoArray}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(block), &items); err != nil {
		return Invalid{Reason: ReasonInvalidJSON, Detail: err.Error()}
	}

	results := make([]models.ClassificationResult, 0, len(items))
	for _, item := range items {
		r, detail := validateRecord(item)
		if detail != "" {
			return Invalid{Reason: ReasonShape, Detail: detail}
		}
		results = append(results, r)
	}

	return Valid{Results: results}
}

func validateRecord(item json.RawMessage) (models.ClassificationResult, string) {
	var r models.ClassificationResult

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return r, "element is not an object"
	}
	if len(fields) != 3 {
		return r, "element must have exactly the keys derecho, cantidad, lugares"
	}

	rawRight, ok := fields[KeyRight]
	if !ok {
		return r, "missing key " + KeyRight
	}
	if err := json.Unmarshal(rawRight, &r.Right); err != nil || isNull(rawRight) {
		return r, KeyRight + " must be a string"
	}
	r.Right = strings.TrimSpace(r.Right)
	if r.Right == "" {
		return r, KeyRight + " must not be empty"
	}

	rawCount, ok := fields[KeyCount]
	if !ok {
		return r, "missing key " + KeyCount
	}
	if trimmed := bytes.TrimSpace(rawCount); len(trimmed) == 0 || trimmed[0] == '"' {
		return r, KeyCount + " must be a number"
	}
	dec := json.NewDecoder(bytes.NewReader(rawCount))
	dec.UseNumber()
	var number json.Number
	if err := dec.Decode(&number); err != nil {
		return r, KeyCount + " must be a number"
	}
	count, err := number.Int64()
	if err != nil || count < 0 {
		return r, KeyCount + " must be a non-negative integer"
	}
	r.Count = int(count)

	rawPlaces, ok := fields[KeyPlaces]
	if !ok {
		return r, "missing key " + KeyPlaces
	}
	if isNull(rawPlaces) {
		return r, KeyPlaces + " must not be null"
	}
	var places []*string
	if err := json.Unmarshal(rawPlaces, &places); err != nil {
		return r, KeyPlaces + " must be a list of strings"
	}
	r.Places = make([]string, 0, len(places))
	for _, p := range places {
		if p == nil {
			return r, KeyPlaces + " must not contain null"
		}
		r.Places = append(r.Places, *p)
	}

	return r, ""
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}

// extractArray returns the text from the first '[' to its balancing ']'.
// Brackets inside JSON strings are ignored.
func extractArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
