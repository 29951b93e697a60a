package alerting

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/SloeberX/auction-tracker/internal/auction"
	"github.com/SloeberX/auction-tracker/internal/logging"
)

// Settings gate the throttle machine. They are evaluated fresh on every
// poll so API edits take effect without a restart.
type Settings struct {
	Enabled             bool
	PingOnNewBid        bool
	PingAt30m           bool
	UpdateInterval      time.Duration
	ClosingPingCooldown time.Duration
}

// WithDefaults fills unset settings.
func (s Settings) WithDefaults() Settings {
	if s.UpdateInterval <= 0 {
		s.UpdateInterval = time.Minute
	}
	if s.ClosingPingCooldown <= 0 {
		s.ClosingPingCooldown = time.Minute
	}
	return s
}

// Action is the single transition the machine picked for one poll.
type Action int

const (
	// ActionNone means every rule is still inside its cooldown.
	ActionNone Action = iota
	// ActionNewBidPing posts a fresh pinging message because the price
	// moved. Bypasses the edit cooldown entirely.
	ActionNewBidPing
	// ActionClosingPing posts a fresh pinging message inside the closing
	// window, at most once per cooldown.
	ActionClosingPing
	// ActionEdit updates the existing tracking message in place.
	ActionEdit
	// ActionCreate posts the initial tracking message without a ping.
	ActionCreate
)

// Evaluate picks at most one transition, in priority order: price change,
// closing-soon, routine refresh, nothing.
func Evaluate(st auction.AlertState, lot *auction.Listing, set Settings, now time.Time) Action {
	if !set.Enabled {
		return ActionNone
	}
	set = set.WithDefaults()

	priceChanged := lot.CurrentPrice != nil && st.LastKnownPrice != nil && !lot.CurrentPrice.Equal(*st.LastKnownPrice)
	if set.PingOnNewBid && priceChanged {
		return ActionNewBidPing
	}

	if set.PingAt30m && withinClosingWindow(lot.EndsAt, now) {
		if st.Last30mPingAt == nil || now.Sub(*st.Last30mPingAt) >= set.ClosingPingCooldown {
			return ActionClosingPing
		}
	}

	if st.LastEditAt == nil || now.Sub(*st.LastEditAt) >= set.UpdateInterval {
		if st.MessageID != "" {
			return ActionEdit
		}
		return ActionCreate
	}

	return ActionNone
}

// Machine executes throttle decisions against the notification sink. It
// owns the per-listing AlertState passed to HandlePoll; nothing else
// reads or writes it. The notifier is passed per call because the
// webhook target is runtime-reloadable.
type Machine struct {
	logger zerolog.Logger
}

// NewMachine constructs a Machine.
func NewMachine(logger zerolog.Logger) *Machine {
	return &Machine{logger: logging.Component(logger, "alert_throttle")}
}

// HandlePoll evaluates and executes one transition. State updates are
// optimistic: delivery failures are swallowed, except the message id,
// which is only committed once Discord confirmed the send. The returned
// flag reports whether the state changed and should be persisted.
func (m *Machine) HandlePoll(ctx context.Context, notifier Notifier, st *auction.AlertState, lot *auction.Listing, set Settings, now time.Time) bool {
	if notifier == nil {
		return false
	}

	action := Evaluate(*st, lot, set, now)
	if action == ActionNone {
		return false
	}

	alert := Alert{
		Title:        lot.Title,
		DisplayName:  lot.DisplayName,
		URL:          lot.URL,
		Image:        lot.Image,
		Currency:     lot.Currency,
		Price:        lot.CurrentPrice,
		EndsAt:       lot.EndsAt,
		LastChangeAt: lot.LastChangeAt,
		Now:          now,
	}

	switch action {
	case ActionNewBidPing:
		if id, err := notifier.Send(ctx, alert, true); err != nil {
			m.logger.Error().Err(err).Str("listing", lot.ID).Msg("bid alert delivery failed")
		} else {
			st.MessageID = id
		}
		st.LastKnownPrice = lot.CurrentPrice
		ts := now
		st.LastBidAlertAt = &ts
		st.LastEditAt = &ts

	case ActionClosingPing:
		if id, err := notifier.Send(ctx, alert, true); err != nil {
			m.logger.Error().Err(err).Str("listing", lot.ID).Msg("closing alert delivery failed")
		} else {
			st.MessageID = id
		}
		if lot.CurrentPrice != nil {
			st.LastKnownPrice = lot.CurrentPrice
		}
		ts := now
		st.Last30mPingAt = &ts
		st.LastEditAt = &ts

	case ActionEdit:
		if err := notifier.Edit(ctx, st.MessageID, alert); err != nil {
			m.logger.Warn().Err(err).Str("listing", lot.ID).Msg("tracking message edit failed")
		}
		if lot.CurrentPrice != nil {
			st.LastKnownPrice = lot.CurrentPrice
		}
		ts := now
		st.LastEditAt = &ts

	case ActionCreate:
		if id, err := notifier.Send(ctx, alert, false); err != nil {
			m.logger.Warn().Err(err).Str("listing", lot.ID).Msg("tracking message creation failed")
		} else {
			st.MessageID = id
		}
		if lot.CurrentPrice != nil {
			st.LastKnownPrice = lot.CurrentPrice
		}
		ts := now
		st.LastEditAt = &ts
	}

	return true
}
