package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

func newTestStore(t *testing.T, titles ...string) *Store {
	t.Helper()
	s := NewStore()
	for _, title := range titles {
		if _, err := s.Create(context.Background(), title); err != nil {
			t.Fatalf("Create(%q) failed: %v", title, err)
		}
	}
	return s
}

func TestCreateAssignsUniqueIDs(t *testing.T) {
	s := newTestStore(t, "Will the fest happen this year?", "Will the cricket team win the final?")

	markets, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(markets))
	}
	if markets[0].ID == markets[1].ID {
		t.Errorf("expected unique IDs, both are %d", markets[0].ID)
	}
	for _, m := range markets {
		if m.Resolved {
			t.Errorf("market %d should start open", m.ID)
		}
		if m.Outcome != nil {
			t.Errorf("market %d should have no outcome while open", m.ID)
		}
	}
}

func TestAppendBetUnknownMarket(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendBet(context.Background(), 42, "alice", domain.SideYes)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendBetSequencesAreContiguous(t *testing.T) {
	s := newTestStore(t, "X")

	for i := 1; i <= 5; i++ {
		rec, err := s.AppendBet(context.Background(), 1, "alice", domain.SideYes)
		if err != nil {
			t.Fatalf("AppendBet %d failed: %v", i, err)
		}
		if rec.Seq != int64(i) {
			t.Errorf("expected seq %d, got %d", i, rec.Seq)
		}
	}
}

func TestConcurrentAppendsFormExactSequenceSet(t *testing.T) {
	const n = 200
	s := newTestStore(t, "X")

	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := s.AppendBet(context.Background(), 1, "alice", domain.SideNo)
			if err != nil {
				t.Errorf("AppendBet failed: %v", err)
				return
			}
			seqs <- rec.Seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool, n)
	for seq := range seqs {
		if seen[seq] {
			t.Errorf("duplicate sequence %d", seq)
		}
		seen[seq] = true
	}
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Errorf("missing sequence %d", i)
		}
	}
}

func TestAppendAfterResolveFails(t *testing.T) {
	s := newTestStore(t, "X")

	if _, err := s.Resolve(context.Background(), 1, domain.OutcomeYes); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	_, err := s.AppendBet(context.Background(), 1, "bob", domain.SideYes)
	if !errors.Is(err, domain.ErrMarketClosed) {
		t.Errorf("expected ErrMarketClosed, got %v", err)
	}
}

func TestResolveIsRejectableIdempotent(t *testing.T) {
	s := newTestStore(t, "X")

	m, err := s.Resolve(context.Background(), 1, domain.OutcomeYes)
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	if !m.Resolved || m.Outcome == nil || *m.Outcome != domain.OutcomeYes {
		t.Fatalf("unexpected resolved market: %+v", m)
	}

	// A second resolve is rejected even with the same outcome, and the
	// stored outcome stays what the first call set.
	if _, err := s.Resolve(context.Background(), 1, domain.OutcomeNo); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}
	if _, err := s.Resolve(context.Background(), 1, domain.OutcomeYes); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}

	got, err := s.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Outcome == nil || *got.Outcome != domain.OutcomeYes {
		t.Errorf("outcome changed after rejected resolve: %+v", got.Outcome)
	}
}

func TestResolveUnknownMarket(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Resolve(context.Background(), 7, domain.OutcomeNo)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentAppendAndResolve(t *testing.T) {
	// Whatever the interleaving, every successful bet carries a sequence
	// assigned while the market was open, and the surviving log is exactly
	// 1..len(log).
	const attempts = 100
	s := newTestStore(t, "X")

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == attempts/2 {
				if _, err := s.Resolve(context.Background(), 1, domain.OutcomeNo); err != nil {
					t.Errorf("Resolve failed: %v", err)
				}
				return
			}
			_, err := s.AppendBet(context.Background(), 1, "bob", domain.SideYes)
			if err != nil && !errors.Is(err, domain.ErrMarketClosed) {
				t.Errorf("unexpected append error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	bets, err := s.BetsForMarket(context.Background(), 1)
	if err != nil {
		t.Fatalf("BetsForMarket failed: %v", err)
	}
	for i, b := range bets {
		if b.Seq != int64(i)+1 {
			t.Errorf("bet %d has seq %d", i, b.Seq)
		}
	}

	// And the market stays closed to further bets.
	if _, err := s.AppendBet(context.Background(), 1, "bob", domain.SideNo); !errors.Is(err, domain.ErrMarketClosed) {
		t.Errorf("expected ErrMarketClosed after resolution, got %v", err)
	}
}

func TestBetsForMarketReturnsCopy(t *testing.T) {
	s := newTestStore(t, "X")

	if _, err := s.AppendBet(context.Background(), 1, "alice", domain.SideYes); err != nil {
		t.Fatalf("AppendBet failed: %v", err)
	}

	first, _ := s.BetsForMarket(context.Background(), 1)
	first[0].User = "mallory"

	second, _ := s.BetsForMarket(context.Background(), 1)
	if second[0].User != "alice" {
		t.Errorf("ledger record mutated through returned slice: %q", second[0].User)
	}
}

func TestBetsForUserOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "A", "B")

	// Interleave alice's bets across markets with bob's noise.
	mustAppend(t, s, 2, "alice", domain.SideNo)
	mustAppend(t, s, 1, "bob", domain.SideYes)
	mustAppend(t, s, 1, "alice", domain.SideYes)
	mustAppend(t, s, 1, "alice", domain.SideNo)
	mustAppend(t, s, 2, "alice", domain.SideYes)

	bets, err := s.BetsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("BetsForUser failed: %v", err)
	}

	want := []struct {
		marketID int64
		side     domain.Side
		seq      int64
	}{
		{1, domain.SideYes, 2},
		{1, domain.SideNo, 3},
		{2, domain.SideNo, 1},
		{2, domain.SideYes, 2},
	}
	if len(bets) != len(want) {
		t.Fatalf("expected %d bets, got %d", len(want), len(bets))
	}
	for i, w := range want {
		b := bets[i]
		if b.MarketID != w.marketID || b.Side != w.side || b.Seq != w.seq {
			t.Errorf("bet %d: got {%d %s %d}, want {%d %s %d}",
				i, b.MarketID, b.Side, b.Seq, w.marketID, w.side, w.seq)
		}
	}
}

func mustAppend(t *testing.T, s *Store, marketID int64, user string, side domain.Side) {
	t.Helper()
	if _, err := s.AppendBet(context.Background(), marketID, user, side); err != nil {
		t.Fatalf("AppendBet(%d, %s) failed: %v", marketID, user, err)
	}
}
