// Package schema validates structured model responses against a declared
// JSON schema and renders retry feedback for the generation engine.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Response is a compiled response schema ready for repeated validation.
type Response struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// Compile resolves a JSON schema for response validation.
func Compile(s *jsonschema.Schema) (*Response, error) {
	if s == nil {
		return nil, fmt.Errorf("schema: schema is nil")
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("schema: resolve: %w", err)
	}
	return &Response{schema: s, resolved: resolved}, nil
}

// For compiles a response schema inferred from a Go type.
func For[T any]() (*Response, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("schema: infer: %w", err)
	}
	return Compile(s)
}

// Schema returns the source schema.
func (r *Response) Schema() *jsonschema.Schema { return r.schema }

// ParseError reports response text that could not be parsed as JSON.
type ParseError struct {
	Raw   string
	cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schema: response is not valid JSON: %v", e.cause)
}

func (e *ParseError) Unwrap() error { return e.cause }

// ViolationError reports a parsed value that failed schema validation.
type ViolationError struct {
	Raw   string
	cause error
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("schema: response violates schema: %v", e.cause)
}
func (e *ViolationError) Unwrap() error { return e.cause }

// Decode parses raw response text: first as-is, then by extracting the first
// top-level `{...}` block. On success the parsed value is validated against
// the compiled schema and returned.
func (r *Response) Decode(raw string) (any, error) {
	value, err := parseLoose(raw)
	if err != nil {
		return nil, &ParseError{Raw: raw, cause: err}
	}
	if err := r.resolved.Validate(value); err != nil {
		return nil, &ViolationError{Raw: raw, cause: err}
	}
	return value, nil
}

func parseLoose(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	var value any
	direct := json.Unmarshal([]byte(trimmed), &value)
	if direct == nil {
		return value, nil
	}
	block, ok := firstObjectBlock(trimmed)
	if !ok {
		return nil, direct
	}
	if err := json.Unmarshal([]byte(block), &value); err != nil {
		return nil, err
	}
	return value, nil
}

// firstObjectBlock extracts the first balanced top-level {...} block,
// skipping braces inside JSON strings.
func firstObjectBlock(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// Feedback renders the model-facing retry message for a failed decode.
func Feedback(err error) string {
	switch typed := err.(type) {
	case *ParseError:
		return fmt.Sprintf("Your previous response could not be parsed as JSON (%v). "+
			"Respond with a single JSON object matching the required schema and nothing else.", typed.cause)
	case *ViolationError:
		var sb strings.Builder
		sb.WriteString("Your previous response did not match the required schema:\n")
		for _, line := range violationLines(typed.cause) {
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteString("Respond again with a corrected JSON object.")
		return sb.String()
	default:
		return fmt.Sprintf("Your previous response was rejected: %v. Respond again with a valid JSON object.", err)
	}
}

func violationLines(err error) []string {
	if err == nil {
		return []string{"unknown violation"}
	}
	parts := strings.Split(err.Error(), "\n")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{err.Error()}
	}
	return out
}
