// Package workflow is the draft approval state machine. It validates every
// inbound action against the draft's current state and ownership, runs the
// external generate/edit/publish calls, and guarantees that a failed call
// never corrupts or discards draft state.
package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"draftbot/internal/content"
	"draftbot/internal/draft"
	"draftbot/internal/publisher"
	"draftbot/internal/storage"
	logx "draftbot/pkg/logx"
)

// ErrNotFound is returned for unknown, foreign and already-terminal drafts
// alike; the caller must render one uniform "no longer available" response.
var ErrNotFound = draft.ErrNotFound

// ErrNoSession marks free text arriving from a user with no open custom-edit
// slot; the surrounding command layer treats it as an unrecognized command.
var ErrNoSession = errors.New("no custom edit session")

// ErrRateLimited marks a generate/regenerate rejected by the per-user limiter.
var ErrRateLimited = errors.New("rate limited")

// Publisher delivers an approved post. The concrete implementation reports
// categorized failures via *publisher.Error.
type Publisher interface {
	Publish(ctx context.Context, text string) (publisher.Receipt, error)
}

type Config struct {
	GeneratePerMin int
	GenerateBurst  int
}

type Engine struct {
	store   *draft.Store
	content content.Service
	pub     Publisher
	history storage.Store // nil when disabled
	limits  *UserLimiter
	log     logx.Logger

	sessions sessionTable

	// now is swappable for tests.
	now func() time.Time
}

func New(cfg Config, store *draft.Store, cs content.Service, pub Publisher, history storage.Store, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	perMin := cfg.GeneratePerMin
	if perMin <= 0 {
		perMin = 3
	}
	burst := cfg.GenerateBurst
	if burst <= 0 {
		burst = 2
	}
	return &Engine{
		store:   store,
		content: cs,
		pub:     pub,
		history: history,
		limits:  NewUserLimiter(perMin, burst),
		log:     log,
		now:     time.Now,
	}
}

// Store exposes the draft store for diagnostics (/status draft count).
func (e *Engine) Store() *draft.Store { return e.store }

// Generate creates a brand-new draft in PendingApproval. On backend failure
// no entity is created.
func (e *Engine) Generate(ctx context.Context, userID int64, topic string) (draft.Post, error) {
	if !e.limits.Allow(userID) {
		return draft.Post{}, ErrRateLimited
	}

	text, err := e.content.Generate(ctx, topic)
	if err != nil {
		return draft.Post{}, fmt.Errorf("workflow generate: %w", err)
	}

	now := e.now()
	p := draft.Post{
		ID:              draft.MintID(userID, topic, now),
		OwnerID:         userID,
		Topic:           topic,
		OriginalContent: text,
		CurrentContent:  text,
		State:           draft.StatePendingApproval,
		CreatedAt:       now,
	}
	e.store.Put(p)

	e.log.Info("draft created", logx.String("id", p.ID), logx.Int64("owner", userID), logx.String("topic", topic))
	return p, nil
}

// Approve publishes the draft's current content. Success removes the draft;
// any delivery failure retains it untouched in PendingApproval.
func (e *Engine) Approve(ctx context.Context, userID int64, id string) (publisher.Receipt, draft.Post, error) {
	unlock := e.store.LockID(id)
	defer unlock()

	p, err := e.store.GetOwned(id, userID)
	if err != nil || p.State != draft.StatePendingApproval {
		return publisher.Receipt{}, draft.Post{}, ErrNotFound
	}

	rcpt, err := e.pub.Publish(ctx, p.CurrentContent)
	if err != nil {
		// Draft stays exactly as it was; only the failure is surfaced.
		return publisher.Receipt{}, p, err
	}

	e.store.Delete(id)
	e.sessions.close(userID, id)
	e.appendHistory(ctx, p, rcpt)

	e.log.Info("draft published",
		logx.String("id", p.ID),
		logx.Int64("owner", userID),
		logx.Int("message_id", rcpt.MessageID),
		logx.String("state", string(draft.StatePublished)),
	)
	return rcpt, p, nil
}

// OpenEditMenu moves PendingApproval -> EditMenu.
func (e *Engine) OpenEditMenu(ctx context.Context, userID int64, id string) (draft.Post, error) {
	unlock := e.store.LockID(id)
	defer unlock()

	p, err := e.store.GetOwned(id, userID)
	if err != nil || p.State != draft.StatePendingApproval {
		return draft.Post{}, ErrNotFound
	}
	p.State = draft.StateEditMenu
	e.store.Put(p)
	return p, nil
}

// QuickEdit applies a canned instruction to the ORIGINAL content, so repeated
// quick edits never compound. Success returns to PendingApproval with the
// content replaced; failure keeps the draft in EditMenu unchanged.
func (e *Engine) QuickEdit(ctx context.Context, userID int64, id string, kind content.EditKind) (draft.Post, error) {
	unlock := e.store.LockID(id)
	defer unlock()

	p, err := e.store.GetOwned(id, userID)
	if err != nil || p.State != draft.StateEditMenu {
		return draft.Post{}, ErrNotFound
	}

	text, err := e.content.Edit(ctx, p.OriginalContent, content.InstructionFor(kind))
	if err != nil {
		return p, fmt.Errorf("workflow quick edit (%s): %w", kind, err)
	}

	p.CurrentContent = text
	p.State = draft.StatePendingApproval
	e.store.Put(p)

	e.log.Info("draft quick-edited", logx.String("id", id), logx.String("kind", string(kind)))
	return p, nil
}

// RequestCustomEdit moves EditMenu -> AwaitingCustomInstruction and opens the
// user's single text-capture slot for this draft.
func (e *Engine) RequestCustomEdit(ctx context.Context, userID int64, id string) (draft.Post, error) {
	unlock := e.store.LockID(id)
	defer unlock()

	p, err := e.store.GetOwned(id, userID)
	if err != nil || p.State != draft.StateEditMenu {
		return draft.Post{}, ErrNotFound
	}
	p.State = draft.StateAwaitingCustom
	e.store.Put(p)
	e.sessions.open(userID, id)
	return p, nil
}

// SubmitCustomEdit consumes the user's open text-capture slot. With no open
// slot it returns ErrNoSession (the text is not an instruction). Whatever the
// edit outcome, the draft ends in PendingApproval: success replaces the
// content, failure keeps it unchanged rather than silently dropping it.
func (e *Engine) SubmitCustomEdit(ctx context.Context, userID int64, instruction string) (draft.Post, error) {
	id, ok := e.sessions.get(userID)
	if !ok {
		return draft.Post{}, ErrNoSession
	}

	unlock := e.store.LockID(id)
	defer unlock()

	e.sessions.close(userID, id)

	p, err := e.store.GetOwned(id, userID)
	if err != nil || p.State != draft.StateAwaitingCustom {
		// Draft vanished (reaped/cancelled) while the slot was open.
		return draft.Post{}, ErrNotFound
	}

	text, err := e.content.Edit(ctx, p.OriginalContent, instruction)
	if err != nil {
		p.State = draft.StatePendingApproval
		e.store.Put(p)
		return p, fmt.Errorf("workflow custom edit: %w", err)
	}

	p.CurrentContent = text
	p.State = draft.StatePendingApproval
	e.store.Put(p)

	e.log.Info("draft custom-edited", logx.String("id", id))
	return p, nil
}

// BackToPost moves EditMenu -> PendingApproval with content unchanged.
func (e *Engine) BackToPost(ctx context.Context, userID int64, id string) (draft.Post, error) {
	unlock := e.store.LockID(id)
	defer unlock()

	p, err := e.store.GetOwned(id, userID)
	if err != nil || p.State != draft.StateEditMenu {
		return draft.Post{}, ErrNotFound
	}
	p.State = draft.StatePendingApproval
	e.store.Put(p)
	return p, nil
}

// Regenerate replaces the draft with a brand-new entity under a fresh id:
// regenerated content is unrelated to the old draft, so this is a delete +
// insert rather than an in-place mutation. On backend failure the old draft
// is retained unchanged. The new draft starts a fresh edit baseline.
func (e *Engine) Regenerate(ctx context.Context, userID int64, id string) (draft.Post, error) {
	if !e.limits.Allow(userID) {
		return draft.Post{}, ErrRateLimited
	}

	unlock := e.store.LockID(id)
	defer unlock()

	p, err := e.store.GetOwned(id, userID)
	if err != nil || p.State != draft.StatePendingApproval {
		return draft.Post{}, ErrNotFound
	}

	text, err := e.content.Generate(ctx, p.Topic)
	if err != nil {
		return p, fmt.Errorf("workflow regenerate: %w", err)
	}

	now := e.now()
	fresh := draft.Post{
		ID:              draft.MintID(userID, p.Topic, now),
		OwnerID:         userID,
		Topic:           p.Topic,
		OriginalContent: text,
		CurrentContent:  text,
		State:           draft.StatePendingApproval,
		CreatedAt:       now,
	}
	e.store.Delete(id)
	e.store.Put(fresh)

	e.log.Info("draft regenerated", logx.String("old_id", id), logx.String("id", fresh.ID), logx.Int64("owner", userID))
	return fresh, nil
}

// Cancel removes the draft from any non-terminal state.
func (e *Engine) Cancel(ctx context.Context, userID int64, id string) (draft.Post, error) {
	unlock := e.store.LockID(id)
	defer unlock()

	p, err := e.store.GetOwned(id, userID)
	if err != nil {
		return draft.Post{}, ErrNotFound
	}
	e.store.Delete(id)
	e.sessions.close(userID, id)

	e.log.Info("draft cancelled", logx.String("id", id), logx.Int64("owner", userID), logx.String("state", string(draft.StateCancelled)))
	return p, nil
}

// HasOpenSession reports whether the user currently has a custom-edit slot.
func (e *Engine) HasOpenSession(userID int64) bool {
	_, ok := e.sessions.get(userID)
	return ok
}

// appendHistory records a publish outcome, best-effort: history must never
// fail or delay the approve path.
func (e *Engine) appendHistory(ctx context.Context, p draft.Post, rcpt publisher.Receipt) {
	if e.history == nil {
		return
	}
	sum := sha256.Sum256([]byte(p.CurrentContent))
	rec := storage.PublishRecord{
		At:          rcpt.PublishedAt,
		DraftID:     p.ID,
		OwnerID:     p.OwnerID,
		Topic:       p.Topic,
		MessageID:   rcpt.MessageID,
		ContentLen:  len(p.CurrentContent),
		ContentHash: hex.EncodeToString(sum[:8]),
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.history.AppendPublish(hctx, rec); err != nil {
		e.log.Warn("publish history append failed", logx.String("id", p.ID), logx.Err(err))
	}
}
