package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/varsitymarkets/campusmarket/internal/bus"
	"github.com/varsitymarkets/campusmarket/internal/directory"
	"github.com/varsitymarkets/campusmarket/internal/domain"
	"github.com/varsitymarkets/campusmarket/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires the services over a fresh in-memory store, an in-process bus,
// and a directory with a single admin.
type fixture struct {
	store      *memory.Store
	markets    *MarketService
	trades     *TradeService
	resolution *ResolutionService
	history    *HistoryService
}

func newFixture(t *testing.T, titles ...string) *fixture {
	t.Helper()

	store := memory.NewStore()
	for _, title := range titles {
		if _, err := store.Create(context.Background(), title); err != nil {
			t.Fatalf("seed market %q: %v", title, err)
		}
	}

	dir := directory.NewStatic([]string{"admin"})
	b := bus.NewMemory()
	logger := testLogger()

	return &fixture{
		store:      store,
		markets:    NewMarketService(store, dir, b, logger),
		trades:     NewTradeService(store, nil, b, logger),
		resolution: NewResolutionService(store, dir, nil, b, nil, logger),
		history:    NewHistoryService(store, nil, logger),
	}
}

func TestPlaceBetAndReplayScenario(t *testing.T) {
	// Market 1 "X"; alice bets YES then NO.
	ctx := context.Background()
	f := newFixture(t, "X")

	if _, err := f.trades.PlaceBet(ctx, 1, "alice", domain.SideYes); err != nil {
		t.Fatalf("first PlaceBet failed: %v", err)
	}
	if _, err := f.trades.PlaceBet(ctx, 1, "alice", domain.SideNo); err != nil {
		t.Fatalf("second PlaceBet failed: %v", err)
	}

	series, err := f.history.CountSeries(ctx, 1)
	if err != nil {
		t.Fatalf("CountSeries failed: %v", err)
	}
	wantSeries := []domain.SeriesPoint{{Yes: 1, No: 0}, {Yes: 1, No: 1}}
	if len(series) != len(wantSeries) {
		t.Fatalf("series length = %d, want %d", len(series), len(wantSeries))
	}
	for i, w := range wantSeries {
		if series[i] != w {
			t.Errorf("series[%d] = %+v, want %+v", i, series[i], w)
		}
	}

	positions, err := f.history.UserHistory(ctx, "alice")
	if err != nil {
		t.Fatalf("UserHistory failed: %v", err)
	}
	wantPositions := []domain.Position{
		{MarketID: 1, Side: domain.SideYes, Seq: 1},
		{MarketID: 1, Side: domain.SideNo, Seq: 2},
	}
	if len(positions) != len(wantPositions) {
		t.Fatalf("positions length = %d, want %d", len(positions), len(wantPositions))
	}
	for i, w := range wantPositions {
		if positions[i] != w {
			t.Errorf("positions[%d] = %+v, want %+v", i, positions[i], w)
		}
	}
}

func TestCountSeriesEmptyMarket(t *testing.T) {
	f := newFixture(t, "X")

	series, err := f.history.CountSeries(context.Background(), 1)
	if err != nil {
		t.Fatalf("CountSeries failed: %v", err)
	}
	if len(series) != 1 || series[0] != (domain.SeriesPoint{}) {
		t.Errorf("empty market series = %+v, want one zero point", series)
	}
}

func TestCountSeriesTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X")

	sides := []domain.Side{
		domain.SideYes, domain.SideNo, domain.SideNo,
		domain.SideYes, domain.SideYes,
	}
	for _, side := range sides {
		if _, err := f.trades.PlaceBet(ctx, 1, "carol", side); err != nil {
			t.Fatalf("PlaceBet failed: %v", err)
		}
	}

	series, err := f.history.CountSeries(ctx, 1)
	if err != nil {
		t.Fatalf("CountSeries failed: %v", err)
	}
	if len(series) != len(sides) {
		t.Fatalf("series length = %d, want %d", len(series), len(sides))
	}
	last := series[len(series)-1]
	if last.Yes+last.No != int64(len(sides)) {
		t.Errorf("final point sums to %d, want %d", last.Yes+last.No, len(sides))
	}
	if last.Yes != 3 || last.No != 2 {
		t.Errorf("final point = %+v, want {3 2}", last)
	}
}

func TestResolveRequiresAdminClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X")

	_, err := f.resolution.Resolve(ctx, 1, domain.OutcomeYes, "bob")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// Rejected resolve leaves the market open.
	m, err := f.markets.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m.Resolved {
		t.Error("market resolved by a forbidden call")
	}
}

func TestResolveThenBetFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X")

	m, err := f.resolution.Resolve(ctx, 1, domain.OutcomeYes, "admin")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !m.Resolved || m.Outcome == nil || *m.Outcome != domain.OutcomeYes {
		t.Fatalf("unexpected market after resolve: %+v", m)
	}

	_, err = f.trades.PlaceBet(ctx, 1, "bob", domain.SideYes)
	if !errors.Is(err, domain.ErrMarketClosed) {
		t.Errorf("expected ErrMarketClosed, got %v", err)
	}
}

func TestResolveTwiceKeepsFirstOutcome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X")

	if _, err := f.resolution.Resolve(ctx, 1, domain.OutcomeNo, "admin"); err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	_, err := f.resolution.Resolve(ctx, 1, domain.OutcomeYes, "admin")
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}

	m, err := f.markets.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m.Outcome == nil || *m.Outcome != domain.OutcomeNo {
		t.Errorf("stored outcome = %v, want NO from the first call", m.Outcome)
	}
}

func TestResolveUnknownMarket(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolution.Resolve(context.Background(), 9, domain.OutcomeYes, "admin")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupedHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")

	mustPlace(t, f, 1, "alice", domain.SideYes)
	mustPlace(t, f, 2, "alice", domain.SideNo)
	mustPlace(t, f, 1, "alice", domain.SideNo)
	mustPlace(t, f, 1, "bob", domain.SideYes)

	grouped, err := f.history.GroupedHistory(ctx, "alice")
	if err != nil {
		t.Fatalf("GroupedHistory failed: %v", err)
	}
	if len(grouped) != 2 {
		t.Fatalf("grouped over %d markets, want 2: %v", len(grouped), grouped)
	}
	if got := grouped["1"]; len(got) != 2 || got[0] != domain.SideYes || got[1] != domain.SideNo {
		t.Errorf(`grouped["1"] = %v, want [YES NO]`, got)
	}
	if got := grouped["2"]; len(got) != 1 || got[0] != domain.SideNo {
		t.Errorf(`grouped["2"] = %v, want [NO]`, got)
	}
}

func TestGroupedHistoryUnknownUser(t *testing.T) {
	f := newFixture(t, "A")

	grouped, err := f.history.GroupedHistory(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GroupedHistory failed: %v", err)
	}
	if grouped == nil {
		t.Fatal("expected empty non-nil map")
	}
	if len(grouped) != 0 {
		t.Errorf("grouped = %v, want empty", grouped)
	}
}

func TestCreateMarketRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.markets.Create(ctx, "New question", "bob"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	m, err := f.markets.Create(ctx, "New question", "admin")
	if err != nil {
		t.Fatalf("admin Create failed: %v", err)
	}
	if m.ID == 0 || m.Title != "New question" || m.Resolved {
		t.Errorf("unexpected created market: %+v", m)
	}
}

type stubTrigger struct {
	nudged int
}

func (s *stubTrigger) Nudge() { s.nudged++ }

func TestResolveNudgesArchiver(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if _, err := store.Create(ctx, "X"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	trigger := &stubTrigger{}
	res := NewResolutionService(store, directory.NewStatic([]string{"admin"}), nil, nil, trigger, testLogger())

	if _, err := res.Resolve(ctx, 1, domain.OutcomeYes, "admin"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if trigger.nudged != 1 {
		t.Errorf("archiver nudged %d times, want 1", trigger.nudged)
	}
}

func mustPlace(t *testing.T, f *fixture, marketID int64, user string, side domain.Side) {
	t.Helper()
	if _, err := f.trades.PlaceBet(context.Background(), marketID, user, side); err != nil {
		t.Fatalf("PlaceBet(%d, %s) failed: %v", marketID, user, err)
	}
}
