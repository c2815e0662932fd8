package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "draftbot/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS publishes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	at           TEXT NOT NULL,
	draft_id     TEXT NOT NULL,
	owner_id     INTEGER NOT NULL,
	topic        TEXT NOT NULL,
	message_id   INTEGER NOT NULL,
	content_len  INTEGER NOT NULL,
	content_hash TEXT
);
CREATE INDEX IF NOT EXISTS idx_publishes_at ON publishes(at);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug("sqlite publish history opened", logx.String("path", cfg.Path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) AppendPublish(ctx context.Context, rec PublishRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publishes(at, draft_id, owner_id, topic, message_id, content_len, content_hash)
		 VALUES(?,?,?,?,?,?,?)`,
		rec.At.Format(time.RFC3339Nano), rec.DraftID, rec.OwnerID, rec.Topic,
		rec.MessageID, rec.ContentLen, rec.ContentHash,
	)
	return err
}

func (s *sqliteStore) RecentPublishes(ctx context.Context, limit int) ([]PublishRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, draft_id, owner_id, topic, message_id, content_len, COALESCE(content_hash, '')
		 FROM publishes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PublishRecord
	for rows.Next() {
		var rec PublishRecord
		var at string
		if err := rows.Scan(&at, &rec.DraftID, &rec.OwnerID, &rec.Topic, &rec.MessageID, &rec.ContentLen, &rec.ContentHash); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			rec.At = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
