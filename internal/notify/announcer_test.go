package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/varsitymarkets/campusmarket/internal/bus"
	"github.com/varsitymarkets/campusmarket/internal/domain"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingSender) Send(ctx context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAnnouncerForwardsMarketEvents(t *testing.T) {
	b := bus.NewMemory()
	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewAnnouncer(b, []Sender{sender}, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()

	// Give the announcer time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	created, _ := json.Marshal(domain.MarketCreatedEvent{MarketID: 7, Title: "Will it snow?"})
	if err := b.Publish(ctx, domain.ChannelMarkets, created); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return len(sender.snapshot()) == 1 })
	msg := sender.snapshot()[0]
	if !strings.Contains(msg, "#7") || !strings.Contains(msg, "Will it snow?") {
		t.Errorf("message = %q", msg)
	}

	resolved, _ := json.Marshal(domain.ResolutionEvent{MarketID: 7, Outcome: domain.OutcomeYes})
	if err := b.Publish(ctx, domain.ChannelResolutions, resolved); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return len(sender.snapshot()) == 2 })
	msg = sender.snapshot()[1]
	if !strings.Contains(msg, "resolved YES") {
		t.Errorf("message = %q", msg)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("announcer did not stop on cancel")
	}
}

func TestAnnouncerIgnoresMalformedPayload(t *testing.T) {
	b := bus.NewMemory()
	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewAnnouncer(b, []Sender{sender}, logger)
	go func() { _ = a.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)

	if err := b.Publish(ctx, domain.ChannelMarkets, []byte("not json")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ok, _ := json.Marshal(domain.MarketCreatedEvent{MarketID: 1, Title: "ok"})
	if err := b.Publish(ctx, domain.ChannelMarkets, ok); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return len(sender.snapshot()) == 1 })
	if msg := sender.snapshot()[0]; !strings.Contains(msg, "ok") {
		t.Errorf("message = %q", msg)
	}
}
