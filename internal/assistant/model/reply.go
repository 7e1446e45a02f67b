package model

import (
	"encoding/json"
	"strings"
)

// basic safety limit to avoid pathological model outputs
const maxReplyLen = 256 * 1024 // 256KB

// Metadata type discriminators the assistant is prompted to produce.
const (
	MetadataQuestion     = "question"
	MetadataSuggestion   = "suggestion"
	MetadataConfirmation = "confirmation"
	MetadataInfo         = "info"
)

// QuestionDetail asks the user to choose or clarify before the design can proceed.
type QuestionDetail struct {
	Prompt  string   `json:"prompt,omitempty"`
	Options []string `json:"options,omitempty"`
}

// SuggestionItem is one concrete design proposal.
type SuggestionItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// SuggestionDetail carries one or more design proposals.
type SuggestionDetail struct {
	Items []SuggestionItem `json:"items,omitempty"`
}

// ConfirmationDetail restates a decision the user has made.
type ConfirmationDetail struct {
	Summary string `json:"summary,omitempty"`
}

// InfoDetail carries free-form informational context.
type InfoDetail struct {
	Topic string `json:"topic,omitempty"`
}

// ReplyMetadata is the structured reply's metadata object, decoded into one of
// the known shapes by its "type" discriminator. Raw always holds the full
// decoded object so unrecognized shapes survive round trips.
type ReplyMetadata struct {
	Type         string
	Question     *QuestionDetail
	Suggestion   *SuggestionDetail
	Confirmation *ConfirmationDetail
	Info         *InfoDetail
	Raw          map[string]any
}

// UnmarshalJSON decodes the discriminated union. An unknown or missing type
// keeps only Raw; it is not an error.
func (m *ReplyMetadata) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.Raw = raw
	if t, ok := raw["type"].(string); ok {
		m.Type = t
	}

	switch m.Type {
	case MetadataQuestion:
		var d QuestionDetail
		if err := json.Unmarshal(b, &d); err == nil {
			m.Question = &d
		}
	case MetadataSuggestion:
		var d SuggestionDetail
		if err := json.Unmarshal(b, &d); err == nil {
			m.Suggestion = &d
		}
	case MetadataConfirmation:
		var d ConfirmationDetail
		if err := json.Unmarshal(b, &d); err == nil {
			m.Confirmation = &d
		}
	case MetadataInfo:
		var d InfoDetail
		if err := json.Unmarshal(b, &d); err == nil {
			m.Info = &d
		}
	}
	return nil
}

// StructuredReply is the fully parsed assistant document. It is created once
// per turn, at stream completion, from the complete accumulated buffer.
type StructuredReply struct {
	Message  string
	Metadata *ReplyMetadata
	// ShouldGenerateImage is nil when the document omitted the flag, in which
	// case the secondary decision call resolves it.
	ShouldGenerateImage *bool
	// Raw is the exact JSON document, retained for persistence alongside the
	// display text.
	Raw json.RawMessage
}

type replyDocument struct {
	Message             *string         `json:"message"`
	Metadata            json.RawMessage `json:"metadata"`
	ShouldGenerateImage *bool           `json:"shouldGenerateImage"`
}

// ParseStructuredReply parses the complete accumulated buffer into a
// StructuredReply. The buffer must be a JSON object carrying a string
// "message"; metadata and the image flag are kept when present and well
// typed, and silently absent otherwise. It returns false when the buffer is
// not such a document; callers then fall back to the raw text, which is a
// supported outcome rather than an error.
func ParseStructuredReply(raw string) (*StructuredReply, bool) {
	if len(raw) > maxReplyLen {
		return nil, false
	}

	trimmed := stripCodeFence(raw)

	var doc replyDocument
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, false
	}
	if doc.Message == nil {
		return nil, false
	}

	reply := &StructuredReply{
		Message:             *doc.Message,
		ShouldGenerateImage: doc.ShouldGenerateImage,
		Raw:                 json.RawMessage(trimmed),
	}
	if len(doc.Metadata) > 0 && doc.Metadata[0] == '{' {
		var meta ReplyMetadata
		if err := json.Unmarshal(doc.Metadata, &meta); err == nil {
			reply.Metadata = &meta
		}
	}
	return reply, true
}

// stripCodeFence unwraps a ```json ... ``` block some models emit around the
// document. Anything else is returned unchanged.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
