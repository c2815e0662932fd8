// Package app wires the bot together: config, logging, the Telegram
// adapter, the draft workflow and its reaper, and the update dispatcher.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"draftbot/internal/bot"
	"draftbot/internal/config"
	"draftbot/internal/content"
	"draftbot/internal/draft"
	"draftbot/internal/publisher"
	"draftbot/internal/runtime/supervisor"
	"draftbot/internal/storage"
	kit "draftbot/internal/transport"
	telegram "draftbot/internal/transport/telegram/adapter"
	"draftbot/internal/transport/telegram/router"
	"draftbot/internal/workflow"
	logx "draftbot/pkg/logx"
)

type StopReason string

const (
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	store   *draft.Store
	reaper  *draft.Reaper
	engine  *workflow.Engine
	pub     *publisher.Telegram
	history storage.Store
	rt      *router.Router
	bot     *bot.Bot

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	contentSvc, err := content.NewOpenAI(content.OpenAIConfig{
		APIKey:   cfg.Content.APIKey,
		Model:    cfg.Content.Model,
		BaseURL:  cfg.Content.BaseURL,
		MaxChars: cfg.Content.MaxChars,
	}, log.With(logx.String("comp", "content")))
	if err != nil {
		return nil, err
	}

	channelID, err := parseChannelID(cfg.Telegram.ChannelID)
	if err != nil {
		return nil, err
	}
	pub := publisher.NewTelegram(ad, channelID, log.With(logx.String("comp", "publisher")))

	// Publish history (optional)
	var history storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		history = st
		log.Info("publish history enabled", logx.String("driver", sc.Driver))
	}

	ttl, err := config.ParseDurationOrDefault("workflow.draft_ttl", cfg.Workflow.DraftTTL, time.Hour)
	if err != nil {
		return nil, err
	}
	reap, err := config.ParseDurationOrDefault("workflow.reap_interval", cfg.Workflow.ReapInterval, 30*time.Minute)
	if err != nil {
		return nil, err
	}

	store := draft.NewStore()
	reaper := draft.NewReaper(store, ttl, reap, log.With(logx.String("comp", "reaper")))

	engine := workflow.New(workflow.Config{
		GeneratePerMin: cfg.Workflow.GeneratePerMin,
		GenerateBurst:  cfg.Workflow.GenerateBurst,
	}, store, contentSvc, pub, history, log.With(logx.String("comp", "workflow")))

	rt := router.New(log.With(logx.String("comp", "router")), ad, cfg.Telegram.OwnerUserIDs)
	b := bot.New(engine, pub, history, ttl, log.With(logx.String("comp", "bot")))
	b.Install(rt)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   store,
		reaper:  reaper,
		engine:  engine,
		pub:     pub,
		history: history,
		rt:      rt,
		bot:     b,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.GoRestart("draft.reaper", func(c context.Context) error {
		return a.reaper.Start(c)
	},
		supervisor.WithRestartBackoff(time.Second, 30*time.Second),
		supervisor.WithStopOnCleanExit(true),
	)

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.rt.DispatchLoop(c, a.updates)
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.Int("owners", len(a.cfgm.Get().Telegram.OwnerUserIDs)),
		logx.Bool("channel_configured", a.pub.Configured()),
		logx.Duration("draft_ttl", a.reaper.TTL()),
	)
	return nil
}

// applyConfig applies the hot-reloadable subset of a new config: log levels
// and the owner allowlist. Token, channel, backend and storage changes need
// a restart and are called out instead of being half-applied.
func (a *App) applyConfig(old, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.rt.SetOwners(cfg.Telegram.OwnerUserIDs)

	if old != nil {
		if old.Telegram.Token != cfg.Telegram.Token {
			a.log.Warn("telegram.token changed; restart required")
		}
		if old.Telegram.ChannelID != cfg.Telegram.ChannelID {
			a.log.Warn("telegram.channel_id changed; restart required")
		}
		if old.Content != cfg.Content {
			a.log.Warn("content config changed; restart required")
		}
	}

	a.log.Info("config reloaded", logx.Int("owners", len(cfg.Telegram.OwnerUserIDs)))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context so background loops start unwinding immediately.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		start := time.Now()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("history", time.Second, func(context.Context) error {
		if a.history != nil {
			return a.history.Close()
		}
		return nil
	})

	a.log.Info("stopped", logx.Int("pending_drafts", a.store.Len()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := parseChannelID(cfg.Telegram.ChannelID); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("workflow.draft_ttl", cfg.Workflow.DraftTTL); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("workflow.reap_interval", cfg.Workflow.ReapInterval); err != nil {
		return err
	}
	if cfg.Workflow.GeneratePerMin < 0 {
		return fmt.Errorf("workflow.generate_per_min must be >= 0")
	}
	if cfg.Workflow.GenerateBurst < 0 {
		return fmt.Errorf("workflow.generate_burst must be >= 0")
	}
	if cfg.Content.MaxChars < 0 {
		return fmt.Errorf("content.max_chars must be >= 0")
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}

func parseChannelID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.channel_id: not a chat id: %q", raw)
	}
	return id, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
