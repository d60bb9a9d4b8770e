package service

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/varsitymarkets/campusmarket/internal/domain"
	"github.com/varsitymarkets/campusmarket/internal/store/memory"
)

// recordingBlob captures uploads in memory.
type recordingBlob struct {
	objects map[string]string
}

func newRecordingBlob() *recordingBlob {
	return &recordingBlob{objects: make(map[string]string)}
}

func (b *recordingBlob) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.objects[path] = string(payload)
	return nil
}

func (b *recordingBlob) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return b.Put(ctx, path, data, "")
}

func TestArchivePassExportsResolvedMarkets(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for _, title := range []string{"A", "B"} {
		if _, err := store.Create(ctx, title); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := store.AppendBet(ctx, 1, "alice", domain.SideYes); err != nil {
		t.Fatalf("AppendBet failed: %v", err)
	}
	if _, err := store.AppendBet(ctx, 1, "bob", domain.SideNo); err != nil {
		t.Fatalf("AppendBet failed: %v", err)
	}
	if _, err := store.Resolve(ctx, 1, domain.OutcomeYes); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	blob := newRecordingBlob()
	svc := NewArchiveService(store, store, blob, time.Minute, testLogger())

	if err := svc.archivePass(ctx); err != nil {
		t.Fatalf("archivePass failed: %v", err)
	}

	// Only the resolved market is exported.
	if len(blob.objects) != 1 {
		t.Fatalf("exported %d objects, want 1", len(blob.objects))
	}

	var key, body string
	for k, v := range blob.objects {
		key, body = k, v
	}
	if !strings.HasPrefix(key, "ledgers/market-1-") || !strings.HasSuffix(key, ".jsonl") {
		t.Errorf("unexpected object key %q", key)
	}

	lines := bufio.NewScanner(strings.NewReader(body))
	if !lines.Scan() {
		t.Fatal("empty export body")
	}
	var header ledgerExport
	if err := json.Unmarshal(lines.Bytes(), &header); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if header.MarketID != 1 || header.Outcome != domain.OutcomeYes || header.Bets != 2 {
		t.Errorf("unexpected header: %+v", header)
	}

	var bets []exportedBet
	for lines.Scan() {
		var b exportedBet
		if err := json.Unmarshal(lines.Bytes(), &b); err != nil {
			t.Fatalf("unmarshal bet line: %v", err)
		}
		bets = append(bets, b)
	}
	if len(bets) != 2 {
		t.Fatalf("exported %d bets, want 2", len(bets))
	}
	if bets[0].Seq != 1 || bets[0].User != "alice" || bets[0].Side != domain.SideYes {
		t.Errorf("unexpected first bet: %+v", bets[0])
	}
	if bets[1].Seq != 2 || bets[1].User != "bob" || bets[1].Side != domain.SideNo {
		t.Errorf("unexpected second bet: %+v", bets[1])
	}
}

func TestArchivePassExportsEachMarketOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if _, err := store.Create(ctx, "A"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Resolve(ctx, 1, domain.OutcomeNo); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	blob := newRecordingBlob()
	svc := NewArchiveService(store, store, blob, time.Minute, testLogger())

	if err := svc.archivePass(ctx); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if err := svc.archivePass(ctx); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if len(blob.objects) != 1 {
		t.Errorf("exported %d objects across two passes, want 1", len(blob.objects))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	svc := NewArchiveService(store, store, newRecordingBlob(), time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
