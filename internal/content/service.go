// Package content talks to the text-generation backend: drafting a post for a
// topic and revising a post against the original baseline.
package content

import "context"

// Service is the generation/editing backend. Implementations must treat both
// calls as all-or-nothing: on error the caller keeps its previous content.
type Service interface {
	// Generate drafts a post for topic, returned as Telegram-ready HTML.
	Generate(ctx context.Context, topic string) (string, error)

	// Edit applies instruction to original and returns the revised post.
	// Edits always start from the original baseline, never from a prior edit.
	Edit(ctx context.Context, original, instruction string) (string, error)
}

// EditKind is a canned revision the edit menu offers.
type EditKind string

const (
	EditShorter  EditKind = "shorter"
	EditLonger   EditKind = "longer"
	EditEngaging EditKind = "engaging"
	EditFormal   EditKind = "formal"
)

// EditKinds lists the canned revisions in menu order.
func EditKinds() []EditKind {
	return []EditKind{EditShorter, EditLonger, EditEngaging, EditFormal}
}

// ParseEditKind validates a wire-format kind token.
func ParseEditKind(raw string) (EditKind, bool) {
	k := EditKind(raw)
	_, ok := quickEditInstructions[k]
	return k, ok
}

// InstructionFor returns the edit instruction text for a canned kind.
func InstructionFor(kind EditKind) string {
	return quickEditInstructions[kind]
}

// Label returns the human label shown on the edit menu button.
func (k EditKind) Label() string {
	switch k {
	case EditShorter:
		return "Shorter"
	case EditLonger:
		return "More detail"
	case EditEngaging:
		return "More engaging"
	case EditFormal:
		return "More formal"
	}
	return string(k)
}

var quickEditInstructions = map[EditKind]string{
	EditShorter:  "Make the post shorter. Cut secondary detail and keep only the essential points.",
	EditLonger:   "Expand the post with more detail and context while keeping its structure.",
	EditEngaging: "Rewrite the post to be more engaging and attention-grabbing without changing the facts.",
	EditFormal:   "Rewrite the post in a more formal, professional tone.",
}
