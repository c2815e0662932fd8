package router

import (
	"context"
	"sync"
	"testing"
	"time"

	kit "draftbot/internal/transport"
	logx "draftbot/pkg/logx"
)

type fakeAdapter struct {
	mu      sync.Mutex
	sent    []string
	answers []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return kit.MessageRef{MessageID: 1}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, _ kit.MessageRef, _ string, _ *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) DeleteMessage(_ context.Context, _ kit.MessageRef) error { return nil }

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	f.answers = append(f.answers, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) ChatByID(_ context.Context, id int64) (kit.ChatInfo, error) {
	return kit.ChatInfo{ID: id}, nil
}

func (f *fakeAdapter) sentCopy() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeAdapter) answersCopy() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.answers...)
}

func runDispatch(t *testing.T, r *Router, ups ...kit.Update) {
	t.Helper()
	ch := make(chan kit.Update, len(ups))
	for _, u := range ups {
		ch <- u
	}
	close(ch)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.DispatchLoop(context.Background(), ch)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch loop did not drain")
	}
}

func msgUpdate(fromID int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: 100, FromID: fromID, Text: text}}
}

func cbUpdate(fromID int64, data string) kit.Update {
	return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb1", FromID: fromID, ChatID: 100, MessageID: 5, Data: data}}
}

func TestCommandDispatch(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})

	var mu sync.Mutex
	var gotArgs []string
	r.Register([]Command{{
		Name:   "news",
		Access: AccessOwnerOnly,
		Handle: func(ctx context.Context, req *Request) error {
			mu.Lock()
			gotArgs = append([]string(nil), req.Args...)
			mu.Unlock()
			return nil
		},
	}}, nil)

	runDispatch(t, r, msgUpdate(7, "/news go release notes"))

	mu.Lock()
	defer mu.Unlock()
	if len(gotArgs) != 3 || gotArgs[0] != "go" {
		t.Fatalf("args = %v", gotArgs)
	}
}

func TestCommandBotSuffixStripped(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})

	called := make(chan struct{}, 1)
	r.Register([]Command{{
		Name: "start",
		Handle: func(ctx context.Context, req *Request) error {
			called <- struct{}{}
			return nil
		},
	}}, nil)

	runDispatch(t, r, msgUpdate(7, "/start@draft_bot"))

	select {
	case <-called:
	default:
		t.Fatal("handler not invoked for /start@botname")
	}
}

func TestOwnerOnlyCommandRejectsStranger(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})

	r.Register([]Command{{
		Name:   "news",
		Access: AccessOwnerOnly,
		Handle: func(ctx context.Context, req *Request) error {
			t.Error("handler must not run for non-owner")
			return nil
		},
	}}, nil)

	runDispatch(t, r, msgUpdate(999, "/news topic"))

	sent := ad.sentCopy()
	if len(sent) != 1 || sent[0] != "unauthorized" {
		t.Fatalf("sent = %v", sent)
	}
}

func TestUnknownCommandHint(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, nil)
	r.Register(nil, nil)

	runDispatch(t, r, msgUpdate(7, "/frobnicate"))

	sent := ad.sentCopy()
	if len(sent) != 1 || sent[0] != "Unknown command. Try /help" {
		t.Fatalf("sent = %v", sent)
	}
}

func TestCallbackDispatch(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})

	var mu sync.Mutex
	var gotPayload string
	r.Register(nil, []CallbackRoute{{
		Scope:  "post",
		Action: "approve",
		Handle: func(ctx context.Context, req *Request, payload string) error {
			mu.Lock()
			gotPayload = payload
			mu.Unlock()
			return nil
		},
	}})

	runDispatch(t, r, cbUpdate(7, "post:approve:ab12cd34ef56"))

	mu.Lock()
	defer mu.Unlock()
	if gotPayload != "ab12cd34ef56" {
		t.Fatalf("payload = %q", gotPayload)
	}
	// The handler did not answer, so the router acks the spinner.
	if n := len(ad.answersCopy()); n != 1 {
		t.Fatalf("answers = %d, want 1", n)
	}
}

func TestCallbackPayloadKeepsColons(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})

	var mu sync.Mutex
	var gotPayload string
	r.Register(nil, []CallbackRoute{{
		Scope:  "post",
		Action: "quick_edit",
		Handle: func(ctx context.Context, req *Request, payload string) error {
			mu.Lock()
			gotPayload = payload
			mu.Unlock()
			return nil
		},
	}})

	runDispatch(t, r, cbUpdate(7, "post:quick_edit:ab12|shorter"))

	mu.Lock()
	defer mu.Unlock()
	if gotPayload != "ab12|shorter" {
		t.Fatalf("payload = %q", gotPayload)
	}
}

func TestCallbackOwnerOnlyByDefault(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})

	r.Register(nil, []CallbackRoute{{
		Scope:  "post",
		Action: "approve",
		Handle: func(ctx context.Context, req *Request, payload string) error {
			t.Error("handler must not run for non-owner")
			return nil
		},
	}})

	runDispatch(t, r, cbUpdate(999, "post:approve:ab12"))

	ans := ad.answersCopy()
	if len(ans) != 1 || ans[0] != "forbidden" {
		t.Fatalf("answers = %v", ans)
	}
}

func TestCallbackWithoutSeparatorStillAnswered(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})

	r.Register(nil, []CallbackRoute{{
		Scope:  "post",
		Action: "approve",
		Handle: func(ctx context.Context, req *Request, payload string) error {
			t.Error("handler must not run for garbage data")
			return nil
		},
	}})

	runDispatch(t, r, cbUpdate(7, "garbage-no-colon"))

	// Data we cannot parse still gets a blank ack so the client's
	// loading spinner stops.
	ans := ad.answersCopy()
	if len(ans) != 1 || ans[0] != "" {
		t.Fatalf("answers = %v, want one blank ack", ans)
	}
	if got := ad.sentCopy(); len(got) != 0 {
		t.Fatalf("sent = %v, want none", got)
	}
}

func TestCallbackHandlerAnswerIsTheOnlyAck(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})

	r.Register(nil, []CallbackRoute{{
		Scope:  "post",
		Action: "cancel",
		Handle: func(ctx context.Context, req *Request, payload string) error {
			return req.Answer(ctx, "gone")
		},
	}})

	runDispatch(t, r, cbUpdate(7, "post:cancel:ab12"))

	// A handler that answers suppresses the trailing blank ack.
	ans := ad.answersCopy()
	if len(ans) != 1 || ans[0] != "gone" {
		t.Fatalf("answers = %v, want exactly [\"gone\"]", ans)
	}
}

func TestPlainTextRouting(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})
	r.Register(nil, nil)

	var mu sync.Mutex
	var got string
	r.OnText(func(ctx context.Context, req *Request) (bool, error) {
		mu.Lock()
		got = req.Text
		mu.Unlock()
		return true, nil
	})

	runDispatch(t, r, msgUpdate(7, "make it punchier"))

	mu.Lock()
	defer mu.Unlock()
	if got != "make it punchier" {
		t.Fatalf("text = %q", got)
	}
	if n := len(ad.sentCopy()); n != 0 {
		t.Fatalf("consumed text must not trigger the hint, sent %d", n)
	}
}

func TestPlainTextUnconsumedGetsHint(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})
	r.Register(nil, nil)
	r.OnText(func(ctx context.Context, req *Request) (bool, error) { return false, nil })

	runDispatch(t, r, msgUpdate(7, "hello?"))

	sent := ad.sentCopy()
	if len(sent) != 1 {
		t.Fatalf("sent = %v", sent)
	}
}

func TestHotSwapOwners(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{7})

	hits := make(chan int64, 2)
	r.Register([]Command{{
		Name:   "news",
		Access: AccessOwnerOnly,
		Handle: func(ctx context.Context, req *Request) error {
			hits <- req.FromID
			return nil
		},
	}}, nil)

	r.SetOwners([]int64{8})
	runDispatch(t, r, msgUpdate(8, "/news x"), msgUpdate(7, "/news y"))

	close(hits)
	var got []int64
	for id := range hits {
		got = append(got, id)
	}
	if len(got) != 1 || got[0] != 8 {
		t.Fatalf("handled for %v, want only the new owner", got)
	}
}
