// Package router dispatches Telegram updates to registered handlers through a
// bounded, supervised worker pool. It routes three shapes of traffic: slash
// commands, inline-button callbacks ("scope:action:payload"), and plain text
// (which the bot layer uses for custom edit instructions).
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"draftbot/internal/runtime/supervisor"
	kit "draftbot/internal/transport"
	logx "draftbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	Name        string // e.g. "news"
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// Callback access defaults to owner-only: inline buttons drive the approval
// workflow and must never respond to non-owners.
type CallbackAccess int

const (
	CallbackAccessOwnerOnly CallbackAccess = iota
	CallbackAccessEveryone
)

type CallbackRoute struct {
	Scope   string
	Action  string
	Access  CallbackAccess
	Timeout time.Duration
	Handle  CallbackHandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string   // command name or "cb:<scope>:<action>"
	Args    []string // command arguments (nil for callbacks and text)
	Text    string   // full text for plain-text updates
	Payload string   // raw callback payload
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger

	answered atomic.Bool
}

// Answer acknowledges the pressed callback button with text (empty text just
// stops the loading spinner) and suppresses the dispatch loop's trailing blank
// ack, so every press gets exactly one answer. Callback requests only.
func (rq *Request) Answer(ctx context.Context, text string) error {
	rq.answered.Store(true)
	return rq.Adapter.AnswerCallback(ctx, rq.Update.Callback.ID, text)
}

// TextHandler receives non-command message text from a chat. Returning false
// means the text was not consumed and the router answers with a usage hint.
type TextHandler func(ctx context.Context, req *Request) (consumed bool, err error)

type Router struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string // registration order, for /help
	owners   []int64

	cbMu      sync.RWMutex
	callbacks map[string]map[string]CallbackRoute // scope -> action -> route

	textMu sync.RWMutex
	onText TextHandler

	log     logx.Logger
	adapter kit.Adapter

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	jobs chan func()
}

func New(log logx.Logger, adapter kit.Adapter, owners []int64) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		commands:  map[string]Command{},
		callbacks: map[string]map[string]CallbackRoute{},
		owners:    append([]int64(nil), owners...),
		log:       log,
		adapter:   adapter,
		jobs:      make(chan func(), 256),
	}
}

// SetOwners swaps the owner allowlist. Safe during config hot-reload.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.mu.Lock()
	r.owners = cp
	r.mu.Unlock()
}

func (r *Router) ownersSnapshot() []int64 {
	r.mu.RLock()
	cp := append([]int64(nil), r.owners...)
	r.mu.RUnlock()
	return cp
}

func (r *Router) Register(cmds []Command, cbs []CallbackRoute) {
	commands := map[string]Command{}
	order := make([]string, 0, len(cmds))
	for _, c := range cmds {
		name := strings.TrimSpace(strings.TrimPrefix(c.Name, "/"))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		if _, dup := commands[name]; !dup {
			order = append(order, name)
		}
		commands[name] = c
	}

	cb := map[string]map[string]CallbackRoute{}
	for _, route := range cbs {
		s := strings.TrimSpace(route.Scope)
		a := strings.TrimSpace(route.Action)
		if s == "" || a == "" || route.Handle == nil {
			continue
		}
		if cb[s] == nil {
			cb[s] = map[string]CallbackRoute{}
		}
		cb[s][a] = route
	}

	r.mu.Lock()
	r.commands = commands
	r.order = order
	r.mu.Unlock()

	r.cbMu.Lock()
	r.callbacks = cb
	r.cbMu.Unlock()
}

// OnText installs the plain-text handler.
func (r *Router) OnText(h TextHandler) {
	r.textMu.Lock()
	r.onText = h
	r.textMu.Unlock()
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// tryEnqueue is a panic-safe enqueue (handles the jobs channel being closed).
func (r *Router) tryEnqueue(fn func()) (ok bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
		}
	}()
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop consumes updates until ctx is done or the channel closes. It
// owns a bounded worker pool so a slow backend call never stalls routing.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}

	sup := supervisor.New(ctx,
		supervisor.WithLogger(r.log.With(logx.String("comp", "telegram.router"))),
		supervisor.WithCancelOnError(false),
	)
	r.runMu.Lock()
	r.sup = sup
	r.running = true
	r.runMu.Unlock()

	r.log.Info("dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(r.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() {
			r.runMu.Lock()
			r.running = false
			r.runMu.Unlock()
			close(r.jobs)
		})
	}

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					if job == nil {
						continue
					}
					// Middleware already recovers; this keeps the worker
					// alive if a job panics outside the chain.
					func() {
						defer func() {
							if rec := recover(); rec != nil {
								r.log.Error("panic in job", logx.Int("worker", idx), logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.runMu.Lock()
		r.sup = nil
		r.runMu.Unlock()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				r.log.Info("dispatcher stopped (updates channel closed)")
				return nil
			}
			switch up.Kind {
			case kit.UpdateMessage:
				r.routeMessage(ctx, up)
			case kit.UpdateCallback:
				r.routeCallback(ctx, up)
			}
		}
	}
}

func (r *Router) routeMessage(root context.Context, up kit.Update) {
	if up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if !strings.HasPrefix(text, "/") {
		r.routeText(root, up, text)
		return
	}

	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := parts[1:]

	r.mu.RLock()
	cmd, ok := r.commands[word]
	r.mu.RUnlock()
	if !ok {
		_, _ = r.adapter.SendText(root, kit.ChatTarget{ChatID: msg.ChatID}, "Unknown command. Try /help", nil)
		return
	}

	owners := r.ownersSnapshot()
	if cmd.Access == AccessOwnerOnly && !isOwner(msg.FromID, owners) {
		_, _ = r.adapter.SendText(root, kit.ChatTarget{ChatID: msg.ChatID}, "unauthorized", nil)
		return
	}

	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: msg.ChatID},
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Adapter: r.adapter,
		Logger:  r.reqLogger(rid, msg.ChatID, msg.FromID, cmd.Name),
	}

	final := Chain(cmd.Handle, MWPanicRecover(r.log), MWRequestLog(r.log), MWTimeout(cmd.Timeout))
	if !r.tryEnqueue(func() { _ = final(root, req) }) {
		_, _ = r.adapter.SendText(root, req.Chat, "busy, try again", nil)
	}
}

func (r *Router) routeText(root context.Context, up kit.Update, text string) {
	r.textMu.RLock()
	h := r.onText
	r.textMu.RUnlock()
	if h == nil {
		return
	}
	msg := up.Message

	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: msg.ChatID},
		FromID:  msg.FromID,
		Command: "text",
		Text:    text,
		ReqID:   rid,
		Adapter: r.adapter,
		Logger:  r.reqLogger(rid, msg.ChatID, msg.FromID, "text"),
	}

	wrapped := func(ctx context.Context, rq *Request) error {
		consumed, err := h(ctx, rq)
		if err == nil && !consumed {
			_, _ = rq.Adapter.SendText(ctx, rq.Chat, "Send /news <topic> to draft a post, or /help", nil)
		}
		return err
	}

	final := Chain(wrapped, MWPanicRecover(r.log), MWRequestLog(r.log), MWTimeout(30*time.Second))
	if !r.tryEnqueue(func() { _ = final(root, req) }) {
		_, _ = r.adapter.SendText(root, req.Chat, "busy, try again", nil)
	}
}

func (r *Router) routeCallback(root context.Context, up kit.Update) {
	if up.Callback == nil {
		return
	}
	cb := up.Callback
	data := strings.TrimSpace(cb.Data)
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 {
		// Not our wire format; still stop the client's loading spinner.
		_ = r.adapter.AnswerCallback(root, cb.ID, "")
		return
	}
	scope, action := parts[0], parts[1]
	payload := ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	r.cbMu.RLock()
	route, ok := r.callbacks[scope][action]
	r.cbMu.RUnlock()
	if !ok {
		// Stale button from an older build; stop the loading spinner.
		_ = r.adapter.AnswerCallback(root, cb.ID, "")
		return
	}

	owners := r.ownersSnapshot()
	if route.Access == CallbackAccessOwnerOnly && !isOwner(cb.FromID, owners) {
		_ = r.adapter.AnswerCallback(root, cb.ID, "forbidden")
		return
	}

	rid := newReqID()
	name := "cb:" + scope + ":" + action
	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: cb.ChatID},
		FromID:  cb.FromID,
		Command: name,
		Payload: payload,
		ReqID:   rid,
		Adapter: r.adapter,
		Logger:  r.reqLogger(rid, cb.ChatID, cb.FromID, name),
	}

	h := func(ctx context.Context, rq *Request) error { return route.Handle(ctx, rq, payload) }
	final := Chain(h, MWPanicRecover(r.log), MWRequestLog(r.log), MWTimeout(route.Timeout))

	if !r.tryEnqueue(func() {
		_ = final(root, req)
		if !req.answered.Load() {
			// best-effort to stop the "loading" UI
			_ = r.adapter.AnswerCallback(root, cb.ID, "")
		}
	}) {
		_ = r.adapter.AnswerCallback(root, cb.ID, "busy")
	}
}

func (r *Router) reqLogger(rid string, chatID, fromID int64, cmd string) logx.Logger {
	return r.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", chatID),
		logx.Int64("from_id", fromID),
		logx.String("cmd", cmd),
	)
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}

func newReqID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b[:])
}
