// Package draft holds the in-flight draft posts awaiting review: the entity,
// the concurrency-safe store, identity minting, and the TTL reaper.
//
// Drafts are intentionally volatile; process restart discards them all.
package draft

import "time"

// State is the review state of a draft. Terminal states (Published, Cancelled,
// Expired) are never stored: reaching one removes the entry from the store.
type State string

const (
	StatePendingApproval State = "pending_approval"
	StateEditMenu        State = "edit_menu"
	StateAwaitingCustom  State = "awaiting_custom"

	StatePublished State = "published"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// Terminal reports whether s implies removal from the store.
func (s State) Terminal() bool {
	switch s {
	case StatePublished, StateCancelled, StateExpired:
		return true
	}
	return false
}

// Post is a draft post under review.
//
// ID, OwnerID, Topic, OriginalContent and CreatedAt are immutable after
// creation. CurrentContent is replaced wholesale by successful edits;
// OriginalContent stays the baseline so repeated edits never compound.
type Post struct {
	ID      string
	OwnerID int64
	Topic   string

	OriginalContent string
	CurrentContent  string

	State     State
	CreatedAt time.Time
}

// Age returns how long the post has lived relative to now.
func (p Post) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}
