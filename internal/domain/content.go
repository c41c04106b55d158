package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentMode is the kind of learning content being generated.
type ContentMode string

const (
	ModeExplanation ContentMode = "explanation"
	ModeSummary     ContentMode = "summary"
	ModeQuiz        ContentMode = "quiz"
)

// ContentKey is the composite key identifying one cacheable generation
// result. Any component changing produces a different fingerprint, so stale
// hits across versions, personas, or modes are impossible.
type ContentKey struct {
	SubjectID   string      `json:"subject_id"`
	ContentID   string      `json:"content_id"`
	Mode        ContentMode `json:"mode"`
	Version     string      `json:"version"`
	PersonaHash string      `json:"persona_hash,omitempty"`
}

// Fingerprint returns a stable 16-hex-char key string derived from all
// components. The unit separator keeps adjacent components from ever
// colliding ("ab"+"c" vs "a"+"bc").
func (k ContentKey) Fingerprint() string {
	joined := strings.Join([]string{
		k.SubjectID, k.ContentID, string(k.Mode), k.Version, k.PersonaHash,
	}, "\x1f")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])[:16]
}

// Target identifies the (subject, content) pair a session streams for.
// At most one session may be active per target.
func (k ContentKey) Target() string {
	return k.SubjectID + "/" + k.ContentID
}

// ResultCache stores sanitized documents by composite key. Entries are
// immutable once written; regeneration clears then rewrites, never mutates.
type ResultCache interface {
	// Get returns the cached document and true, or "" and false on a miss.
	Get(ctx context.Context, key ContentKey) (string, bool, error)
	// Set stores the document under key.
	Set(ctx context.Context, key ContentKey, content string) error
	// Clear removes the entry for key, if any.
	Clear(ctx context.Context, key ContentKey) error
}

// GenerationRequest asks the upstream source to produce content for a key.
type GenerationRequest struct {
	Key     ContentKey        `json:"key"`
	Prompt  string            `json:"prompt"`
	Persona map[string]string `json:"persona,omitempty"`
}
