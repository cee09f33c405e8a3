package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// FencedJSON returns the contents of the first ```json fenced block, or ""
// when no such block exists.
func FencedJSON(text string) string {
	m := fencedJSONRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// FirstJSONObject scans free text for the first balanced brace-delimited
// object that is valid JSON. Returns "" when nothing parses. Best effort:
// braces inside string literals are handled, but the first candidate wins.
func FirstJSONObject(text string) string {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
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
			switch c {
			case '\\':
				if inString {
					escaped = true
				}
			case '"':
				inString = !inString
			case '{':
				if !inString {
					depth++
				}
			case '}':
				if !inString {
					depth--
					if depth == 0 {
						candidate := text[start : i+1]
						if json.Valid([]byte(candidate)) {
							return candidate
						}
						i = len(text) // abandon this start position
					}
				}
			}
		}
	}
	return ""
}

// ParseStructured extracts a best-effort JSON payload from a free-text
// extraction reply. A nil return means the reply carried no usable object;
// the caller keeps only the raw text.
func ParseStructured(text string) json.RawMessage {
	if obj := FirstJSONObject(text); obj != "" {
		return json.RawMessage(obj)
	}
	return nil
}

// ParseFencedOrFirst prefers a fenced ```json block and falls back to the
// first brace-delimited object. Used by replies with no fixed schema.
func ParseFencedOrFirst(text string) json.RawMessage {
	if payload := FencedJSON(text); payload != "" && json.Valid([]byte(payload)) {
		return json.RawMessage(payload)
	}
	return ParseStructured(text)
}

// ParsedReport is the outcome of decoding an audit reply.
type ParsedReport struct {
	Report   *AuditReport
	Raw      json.RawMessage
	Degraded bool // fenced block missing or status outside the enum
}

// ParseAuditReport decodes a model audit reply. Preference order: fenced
// ```json block, then the first brace-delimited object anywhere in the text
// (flagged degraded). A nil Report means total parse failure; the caller
// reports audit_status UNKNOWN and keeps the raw text.
func ParseAuditReport(text string) ParsedReport {
	payload := FencedJSON(text)
	degraded := false
	if payload == "" || !json.Valid([]byte(payload)) {
		payload = FirstJSONObject(text)
		degraded = true
	}
	if payload == "" {
		return ParsedReport{Degraded: true}
	}

	var report AuditReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return ParsedReport{Degraded: true}
	}
	if !report.ValidStatus() {
		degraded = true
	}
	return ParsedReport{
		Report:   &report,
		Raw:      json.RawMessage(payload),
		Degraded: degraded,
	}
}
