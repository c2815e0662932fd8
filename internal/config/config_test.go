package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const yamlConfig = `
telegram:
  token: "123:abc"
  owner_user_ids: [7, 8]
  channel_id: "-1001234567890"
  poll_timeout: "10s"
content:
  api_key: "sk-test"
  model: "gpt-4o"
workflow:
  draft_ttl: "1h"
  reap_interval: "30m"
  generate_per_min: 3
  generate_burst: 2
logging:
  level: "info"
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: "sqlite"
  path: "./draftbot.db"
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", yamlConfig))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 2 || cfg.Telegram.OwnerUserIDs[0] != 7 {
		t.Fatalf("owners = %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Workflow.DraftTTL != "1h" || cfg.Workflow.GeneratePerMin != 3 {
		t.Fatalf("workflow = %+v", cfg.Workflow)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", `{
		"telegram": {"token": "123:abc", "owner_user_ids": [7], "channel_id": "", "poll_timeout": "5s"},
		"content": {"api_key": "k"},
		"workflow": {},
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}}
	}`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", yamlConfig+"\nextra_section:\n  x: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown top-level field must be rejected")
	}

	m = NewManager(writeFile(t, "config.json", `{"telegram": {"token": "t", "owner_user_ids": [], "channel_id": "", "poll_timeout": "", "typo_field": 1}, "content": {"api_key": ""}, "workflow": {}, "logging": {"level": "", "console": false, "file": {"enabled": false, "path": ""}}}`))
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "typo_field") {
		t.Fatalf("nested unknown field: %v", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", `{"telegram": {"token": "t", "owner_user_ids": [], "channel_id": "", "poll_timeout": ""}, "content": {"api_key": ""}, "workflow": {}, "logging": {"level": "", "console": false, "file": {"enabled": false, "path": ""}}} {"again": true}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing JSON must be rejected")
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("missing file must error")
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", yamlConfig))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	next := &Config{}
	m.Commit(next)
	m.publish(next)

	select {
	case got := <-sub:
		if got != next {
			t.Fatal("subscriber received a different config")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("90s = %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration must be rejected")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("non-duration must be rejected")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "2m", time.Minute); err != nil || d != 2*time.Minute {
		t.Fatalf("explicit = %v, %v", d, err)
	}
}
