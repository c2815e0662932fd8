package draft

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	logx "draftbot/pkg/logx"
)

// Reaper periodically removes drafts older than the TTL. It runs independently
// of user interactions; candidates are re-checked under the per-id lock so a
// sweep never races a concurrent transition into a torn state.
type Reaper struct {
	store *Store
	ttl   time.Duration
	every time.Duration
	log   logx.Logger

	// now is swappable for tests.
	now func() time.Time

	c *cron.Cron
}

func NewReaper(store *Store, ttl, every time.Duration, log logx.Logger) *Reaper {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if every <= 0 {
		every = 30 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reaper{
		store: store,
		ttl:   ttl,
		every: every,
		log:   log,
		now:   time.Now,
	}
}

// Start schedules the sweep and blocks until ctx is canceled.
func (r *Reaper) Start(ctx context.Context) error {
	r.c = cron.New()
	_, err := r.c.AddFunc("@every "+r.every.String(), func() {
		n := r.Sweep()
		if n > 0 {
			r.log.Info("expired drafts reaped", logx.Int("count", n))
		}
	})
	if err != nil {
		return err
	}
	r.c.Start()
	r.log.Debug("reaper started", logx.Duration("ttl", r.ttl), logx.Duration("every", r.every))

	<-ctx.Done()
	stopCtx := r.c.Stop()
	// Wait for an in-flight sweep to finish; it only touches the local store.
	<-stopCtx.Done()
	return nil
}

// Sweep removes every draft whose age exceeds the TTL and returns how many
// were removed. Exposed for tests and for an operator-triggered sweep.
func (r *Reaper) Sweep() int {
	now := r.now()
	removed := 0
	for _, cand := range r.store.Snapshot() {
		if cand.Age(now) <= r.ttl {
			continue
		}
		unlock := r.store.LockID(cand.ID)
		// Re-check under the lock: a user action may have removed the draft
		// between snapshot and here.
		p, err := r.store.Get(cand.ID)
		if err == nil && p.Age(now) > r.ttl {
			r.store.Delete(cand.ID)
			removed++
			r.log.Debug("draft expired",
				logx.String("id", p.ID),
				logx.Int64("owner", p.OwnerID),
				logx.String("state", string(StateExpired)),
				logx.Duration("age", p.Age(now)),
			)
		}
		unlock()
	}
	return removed
}

// TTL returns the configured time-to-live.
func (r *Reaper) TTL() time.Duration { return r.ttl }
