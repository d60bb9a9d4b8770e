// Package notify mirrors market announcements to chat channels. New markets
// and final outcomes are posted to all registered senders (Telegram, Discord)
// so the campus audience hears about them without watching the site.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// Sender is the interface that each announcement channel must implement.
type Sender interface {
	// Send delivers one announcement message.
	Send(ctx context.Context, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Announcer subscribes to the market and resolution channels of the signal
// bus and fans each event out to the registered senders. Delivery is best
// effort; a failed sender never blocks the ledger.
type Announcer struct {
	bus     domain.SignalBus
	senders []Sender
	logger  *slog.Logger
}

// NewAnnouncer creates an Announcer for the given bus and senders.
func NewAnnouncer(bus domain.SignalBus, senders []Sender, logger *slog.Logger) *Announcer {
	return &Announcer{
		bus:     bus,
		senders: senders,
		logger:  logger.With(slog.String("component", "announcer")),
	}
}

// Run subscribes to the announcement channels and dispatches events until the
// context is cancelled.
func (a *Announcer) Run(ctx context.Context) error {
	if len(a.senders) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	marketCh, err := a.bus.Subscribe(ctx, domain.ChannelMarkets)
	if err != nil {
		return fmt.Errorf("announcer: subscribe markets: %w", err)
	}
	resolutionCh, err := a.bus.Subscribe(ctx, domain.ChannelResolutions)
	if err != nil {
		return fmt.Errorf("announcer: subscribe resolutions: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-marketCh:
			if !ok {
				return nil
			}
			a.announceMarket(ctx, data)
		case data, ok := <-resolutionCh:
			if !ok {
				return nil
			}
			a.announceResolution(ctx, data)
		}
	}
}

func (a *Announcer) announceMarket(ctx context.Context, data []byte) {
	var ev domain.MarketCreatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		a.logger.WarnContext(ctx, "bad market event payload",
			slog.String("error", err.Error()),
		)
		return
	}
	a.dispatch(ctx, fmt.Sprintf("New market #%d: %s", ev.MarketID, ev.Title))
}

func (a *Announcer) announceResolution(ctx context.Context, data []byte) {
	var ev domain.ResolutionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		a.logger.WarnContext(ctx, "bad resolution event payload",
			slog.String("error", err.Error()),
		)
		return
	}
	a.dispatch(ctx, fmt.Sprintf("Market #%d resolved %s", ev.MarketID, ev.Outcome))
}

// dispatch sends the message to every sender. Errors from individual senders
// are logged and combined; one failure does not stop the others.
func (a *Announcer) dispatch(ctx context.Context, message string) {
	var errs []string
	for _, s := range a.senders {
		if err := s.Send(ctx, message); err != nil {
			a.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		a.logger.DebugContext(ctx, "announcement sent",
			slog.String("sender", s.Name()),
		)
	}
	if len(errs) > 0 {
		a.logger.WarnContext(ctx, "announcement partially delivered",
			slog.String("errors", strings.Join(errs, "; ")),
		)
	}
}
