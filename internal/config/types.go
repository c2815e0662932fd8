package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Content  ContentConfig  `json:"content"`
	Workflow WorkflowConfig `json:"workflow"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// OwnerUserIDs lists the reviewers allowed to drive the approval workflow.
	OwnerUserIDs []int64 `json:"owner_user_ids"`

	// ChannelID is the broadcast channel posts are published to
	// (e.g. "-1001234567890"). Empty disables publishing.
	ChannelID string `json:"channel_id"`

	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

// ContentConfig configures the generation/editing backend.
type ContentConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model,omitempty"`    // default: gpt-4o
	BaseURL string `json:"base_url,omitempty"` // optional API endpoint override

	// MaxChars caps generated post length (default 1000, Telegram-friendly).
	MaxChars int `json:"max_chars,omitempty"`
}

// WorkflowConfig controls draft lifecycle and per-user generation limits.
//
// All durations are Go duration strings (e.g. "30m", "1h").
type WorkflowConfig struct {
	// DraftTTL is how long an untouched draft may live (default "1h").
	DraftTTL string `json:"draft_ttl,omitempty"`

	// ReapInterval is how often expired drafts are swept (default "30m").
	ReapInterval string `json:"reap_interval,omitempty"`

	// GeneratePerMin / GenerateBurst limit per-user generate+regenerate calls
	// (defaults: 3 per minute, burst 2).
	GeneratePerMin int `json:"generate_per_min,omitempty"`
	GenerateBurst  int `json:"generate_burst,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional publish-history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./draftbot.db" }
//
// Driver "none" (or omitting the section) disables it. Draft state itself is
// never persisted; only publish outcomes are recorded.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}
