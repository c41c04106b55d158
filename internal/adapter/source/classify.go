package source

import (
	"encoding/json"
	"strings"

	"mentorstream/internal/domain"
)

// envelope is the structured event payload shape. All fields are optional;
// the generation service also emits bare {"content": ...} / {"error": ...}
// objects and occasionally plain text.
type envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Content *string         `json:"content"`
	Error   *string         `json:"error"`
}

// Classify maps a reconstructed frame to a typed event. Decode failures on
// the data field are not errors: the payload degrades to opaque text, and
// unrecognized shapes with non-empty text conservatively become content.
// The second return is false for genuinely empty control frames, which are
// discarded silently; malformed frames never propagate as faults.
func Classify(frame domain.StreamFrame) (domain.ContentEvent, bool) {
	if frame.Done {
		return domain.ContentEvent{Kind: domain.EventComplete}, true
	}

	data := frame.Data
	if strings.TrimSpace(data) == "" {
		return domain.ContentEvent{}, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		// Not structured at all: raw text is content.
		return domain.ContentEvent{Kind: domain.EventContent, Text: data}, true
	}

	switch env.Type {
	case "content":
		text := rawText(env.Data)
		if text == "" {
			return domain.ContentEvent{}, false
		}
		return domain.ContentEvent{Kind: domain.EventContent, Text: text}, true
	case "connected":
		return domain.ContentEvent{Kind: domain.EventConnected}, true
	case "complete", "done":
		return domain.ContentEvent{Kind: domain.EventComplete}, true
	case "error":
		return domain.ContentEvent{Kind: domain.EventError, Message: errorMessage(env.Data)}, true
	}

	// No type field: bare shapes from the older route handlers.
	if env.Content != nil {
		if *env.Content == "" {
			return domain.ContentEvent{}, false
		}
		return domain.ContentEvent{Kind: domain.EventContent, Text: *env.Content}, true
	}
	if env.Error != nil {
		return domain.ContentEvent{Kind: domain.EventError, Message: *env.Error}, true
	}

	// Valid JSON of an unknown shape: still non-empty text, still content.
	return domain.ContentEvent{Kind: domain.EventContent, Text: data}, true
}

// rawText decodes a data field holding either a JSON string or anything
// else, falling back to the raw bytes.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// errorMessage extracts an optional message from an error payload shaped
// either {"message": ...} or as a bare string.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
