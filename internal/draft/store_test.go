package draft

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func post(id string, owner int64) Post {
	return Post{
		ID:              id,
		OwnerID:         owner,
		Topic:           "topic",
		OriginalContent: "orig",
		CurrentContent:  "orig",
		State:           StatePendingApproval,
		CreatedAt:       time.Now(),
	}
}

func TestStorePutGetDelete(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Put(post("a1", 7))

	got, err := s.Get("a1")
	if err != nil || got.OwnerID != 7 {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	s.Delete("a1")
	if _, err := s.Get("a1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: %v", err)
	}
	// Deleting again is a no-op.
	s.Delete("a1")
}

func TestGetOwnedHidesForeignDrafts(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Put(post("a1", 7))

	if _, err := s.GetOwned("a1", 7); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	// A different user gets exactly the missing-id answer.
	if _, err := s.GetOwned("a1", 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign read: %v", err)
	}
	if _, err := s.GetOwned("nope", 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing read: %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Put(post("a1", 7))

	got, _ := s.Get("a1")
	got.CurrentContent = "mutated"

	again, _ := s.Get("a1")
	if again.CurrentContent != "orig" {
		t.Fatal("Get must return a copy, not a live reference")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Put(post("a1", 7))
	s.Put(post("b2", 8))

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	s.Delete("a1")
	s.Delete("b2")
	if len(snap) != 2 {
		t.Fatal("snapshot must not observe later deletions")
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestLockIDSerializesPerID(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Put(post("a1", 7))

	const n = 50
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.LockID("a1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != n {
		t.Fatalf("counter = %d, want %d", counter, n)
	}
}

func TestLockIDDistinctIDsIndependent(t *testing.T) {
	t.Parallel()
	s := NewStore()

	unlockA := s.LockID("a1")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := s.LockID("b2")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on b2 blocked behind lock on a1")
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	t.Parallel()
	s := NewStore()
	unlock := s.LockID("a1")
	unlock()
	unlock() // second call must not panic or unlock someone else's hold

	unlock2 := s.LockID("a1")
	unlock2()
}

func TestConcurrentPutDelete(t *testing.T) {
	t.Parallel()
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		id := MintID(int64(i), "t", time.Now())
		go func() {
			defer wg.Done()
			s.Put(post(id, 7))
		}()
		go func() {
			defer wg.Done()
			s.Delete(id)
			_, _ = s.Get(id)
		}()
	}
	wg.Wait()
}
