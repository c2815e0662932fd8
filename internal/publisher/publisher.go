// Package publisher delivers approved posts to the broadcast channel.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "draftbot/internal/transport"
	logx "draftbot/pkg/logx"
)

// Kind categorizes a delivery failure for user-facing reporting. Full detail
// stays in the wrapped error (logged internally only).
type Kind int

const (
	KindUnknown Kind = iota
	KindChannelNotFound
	KindInsufficientRights
	KindBlocked
)

func (k Kind) String() string {
	switch k {
	case KindChannelNotFound:
		return "channel_not_found"
	case KindInsufficientRights:
		return "insufficient_rights"
	case KindBlocked:
		return "blocked"
	}
	return "unknown"
}

// Error is a categorized delivery failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("publish (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Receipt acknowledges a successful delivery.
type Receipt struct {
	MessageID   int
	PublishedAt time.Time
}

// Telegram publishes posts to a single Telegram channel through the adapter.
type Telegram struct {
	ad        kit.Adapter
	channelID int64
	log       logx.Logger
}

func NewTelegram(ad kit.Adapter, channelID int64, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{ad: ad, channelID: channelID, log: log}
}

// Configured reports whether a channel is set up.
func (t *Telegram) Configured() bool { return t.channelID != 0 }

// ChannelID returns the configured channel chat id (0 when unset).
func (t *Telegram) ChannelID() int64 { return t.channelID }

func (t *Telegram) Publish(ctx context.Context, text string) (Receipt, error) {
	if t.channelID == 0 {
		return Receipt{}, &Error{Kind: KindChannelNotFound, Err: errors.New("channel is not configured")}
	}

	ref, err := t.ad.SendText(ctx, kit.ChatTarget{ChatID: t.channelID}, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	if err != nil {
		kind := classify(err)
		t.log.Warn("publish failed",
			logx.Int64("channel", t.channelID),
			logx.String("kind", kind.String()),
			logx.Err(err),
		)
		return Receipt{}, &Error{Kind: kind, Err: err}
	}

	t.log.Info("post published", logx.Int64("channel", t.channelID), logx.Int("message_id", ref.MessageID))
	return Receipt{MessageID: ref.MessageID, PublishedAt: time.Now()}, nil
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, tele.ErrChatNotFound):
		return KindChannelNotFound
	case errors.Is(err, tele.ErrNoRightsToSend):
		return KindInsufficientRights
	case errors.Is(err, tele.ErrBlockedByUser), errors.Is(err, tele.ErrKickedFromChannel):
		return KindBlocked
	}
	return KindUnknown
}
