package workflow

import "sync"

// sessionTable tracks open custom-edit text-capture sessions. A user has at
// most one slot; opening a session for another draft replaces the old one.
// Free text from a user with no open slot is not an edit instruction.
type sessionTable struct {
	mu sync.Mutex
	m  map[int64]string // userID -> draftID
}

func (t *sessionTable) open(userID int64, draftID string) {
	t.mu.Lock()
	if t.m == nil {
		t.m = make(map[int64]string)
	}
	t.m[userID] = draftID
	t.mu.Unlock()
}

func (t *sessionTable) get(userID int64) (draftID string, ok bool) {
	t.mu.Lock()
	draftID, ok = t.m[userID]
	t.mu.Unlock()
	return draftID, ok
}

// close clears the user's slot. When draftID is non-empty the slot is only
// cleared if it still points at that draft, so a session opened for a newer
// draft survives a stale close.
func (t *sessionTable) close(userID int64, draftID string) {
	t.mu.Lock()
	if cur, ok := t.m[userID]; ok && (draftID == "" || cur == draftID) {
		delete(t.m, userID)
	}
	t.mu.Unlock()
}
