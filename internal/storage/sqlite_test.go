package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "draftbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "history.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("driver %q: %v, %v", driver, st, err)
		}
	}
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := st.AppendPublish(ctx, PublishRecord{
			At:          base.Add(time.Duration(i) * time.Minute),
			DraftID:     "d" + string(rune('0'+i)),
			OwnerID:     7,
			Topic:       "topic",
			MessageID:   100 + i,
			ContentLen:  42,
			ContentHash: "abcd",
		})
		if err != nil {
			t.Fatalf("AppendPublish %d: %v", i, err)
		}
	}

	recent, err := st.RecentPublishes(ctx, 2)
	if err != nil {
		t.Fatalf("RecentPublishes: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	// Newest first.
	if recent[0].DraftID != "d2" || recent[1].DraftID != "d1" {
		t.Fatalf("order = %s, %s", recent[0].DraftID, recent[1].DraftID)
	}
	if !recent[0].At.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("at = %s", recent[0].At)
	}
	if recent[0].MessageID != 102 || recent[0].ContentLen != 42 {
		t.Fatalf("record = %+v", recent[0])
	}
}

func TestRecentEmpty(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	recent, err := st.RecentPublishes(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentPublishes: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("len = %d", len(recent))
	}
}

func TestAppendZeroTimeGetsStamped(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.AppendPublish(ctx, PublishRecord{DraftID: "d", Topic: "t"}); err != nil {
		t.Fatalf("AppendPublish: %v", err)
	}
	recent, err := st.RecentPublishes(ctx, 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("RecentPublishes: %v, %d", err, len(recent))
	}
	if recent[0].At.IsZero() {
		t.Fatal("zero publish time must be stamped on insert")
	}
}
