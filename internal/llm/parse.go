package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

var errTrailingData = errors.New("trailing data after JSON value")

const (
	KeyInformationFallback = "Failed to parse key information."
	RiskAssessmentFallback = "Failed to parse risk assessment."
	SummaryFallback        = "Failed to parse summary."
	ResponseParseError     = "Failed to parse analysis response."
)

// Parsed holds the three analysis sections. KeyInformation and RiskAssessment
// are decoded JSON values and are never nil.
type Parsed struct {
	KeyInformation any
	RiskAssessment any
	Summary        string
	// Fallback is set when the whole response could not be parsed.
	Fallback bool
}

// ErrorMarker is the mapping stored for sections of an unparsable response.
func ErrorMarker() map[string]any {
	return map[string]any{"error": ResponseParseError}
}

// ParseAnalysis decodes a model response. Fence markers are removed as
// literal substrings. A JSON object yields its three keys with per-key
// placeholders; anything else yields error markers and the raw text as summary.
func ParseAnalysis(raw string) Parsed {
	clean := strings.TrimSpace(raw)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var payload map[string]json.RawMessage
	if err := decodeStrict(clean, &payload); err != nil || payload == nil {
		return Parsed{
			KeyInformation: ErrorMarker(),
			RiskAssessment: ErrorMarker(),
			Summary:        raw,
			Fallback:       true,
		}
	}

	return Parsed{
		KeyInformation: section(payload["key_information"], KeyInformationFallback),
		RiskAssessment: section(payload["risk_assessment"], RiskAssessmentFallback),
		Summary:        summaryText(payload["summary"]),
	}
}

// decodeStrict rejects trailing data after the first JSON value.
func decodeStrict(s string, v any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return errTrailingData
	}
	return nil
}

func section(raw json.RawMessage, fallback string) any {
	if isAbsent(raw) {
		return fallback
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fallback
	}
	return v
}

func summaryText(raw json.RawMessage) string {
	if isAbsent(raw) {
		return SummaryFallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
