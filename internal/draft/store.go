package draft

import (
	"errors"
	"sync"
)

// ErrNotFound is the uniform "draft is gone" result. It covers ids that never
// existed, drafts owned by someone else and drafts already removed; callers
// must not be able to tell these apart.
var ErrNotFound = errors.New("draft not found")

// Store is an in-memory keyed store of live drafts.
//
// Two locking layers:
//   - a store-wide mutex guarding the map for individual Put/Get/Delete calls;
//   - a per-id mutex (LockID) serializing whole read-modify-write sequences on
//     one draft, including sequences that call external services in between.
//
// Callers performing a transition take LockID first, then use the map
// operations; operations on distinct ids never block each other beyond the
// short map-level critical sections. The store hands out copies, so a Post
// obtained from Get is never shared mutable state.
type Store struct {
	mu    sync.RWMutex
	posts map[string]Post

	ids keyedMutex
}

func NewStore() *Store {
	return &Store{posts: make(map[string]Post)}
}

// LockID acquires the per-id lock and returns its release func.
//
// The lock is valid for ids that do not (yet or anymore) have an entry, so
// regenerate's delete+insert pair and the reaper's check-then-delete both run
// under it.
func (s *Store) LockID(id string) (unlock func()) {
	return s.ids.lock(id)
}

// Put inserts or replaces a draft.
func (s *Store) Put(p Post) {
	s.mu.Lock()
	s.posts[p.ID] = p
	s.mu.Unlock()
}

// Get returns the draft for id.
func (s *Store) Get(id string) (Post, error) {
	s.mu.RLock()
	p, ok := s.posts[id]
	s.mu.RUnlock()
	if !ok {
		return Post{}, ErrNotFound
	}
	return p, nil
}

// GetOwned returns the draft only when it exists AND belongs to ownerID.
// Both failure cases collapse into ErrNotFound so a requester cannot probe
// for drafts belonging to other users.
func (s *Store) GetOwned(id string, ownerID int64) (Post, error) {
	s.mu.RLock()
	p, ok := s.posts[id]
	s.mu.RUnlock()
	if !ok || p.OwnerID != ownerID {
		return Post{}, ErrNotFound
	}
	return p, nil
}

// Delete removes id. Deleting an absent id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.posts, id)
	s.mu.Unlock()
}

// Snapshot returns a copy of all live drafts, for the reaper's sweep and for
// diagnostics. The copies are detached from the store.
func (s *Store) Snapshot() []Post {
	s.mu.RLock()
	out := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	s.mu.RUnlock()
	return out
}

// Len returns the number of live drafts.
func (s *Store) Len() int {
	s.mu.RLock()
	n := len(s.posts)
	s.mu.RUnlock()
	return n
}

// keyedMutex provides one mutex per key with refcounted cleanup, so the lock
// table does not grow with every draft ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l := k.locks[id]
	if l == nil {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			k.mu.Lock()
			l.refs--
			if l.refs <= 0 {
				delete(k.locks, id)
			}
			k.mu.Unlock()
		})
	}
}
