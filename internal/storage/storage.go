// Package storage records publish outcomes. It is deliberately tiny: drafts
// themselves are never persisted, only what actually went out to the channel.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "draftbot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage. If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite busy timeout; 0 means default
}

// PublishRecord is one successfully published post.
type PublishRecord struct {
	At          time.Time
	DraftID     string
	OwnerID     int64
	Topic       string
	MessageID   int
	ContentLen  int
	ContentHash string
}

// Store is the publish-history API used by the workflow engine.
type Store interface {
	AppendPublish(ctx context.Context, rec PublishRecord) error
	RecentPublishes(ctx context.Context, limit int) ([]PublishRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
