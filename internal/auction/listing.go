package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSnapshotBids caps the bid history exposed to consumers.
const DefaultSnapshotBids = 50

// Listing is one tracked auction lot together with its canonical bid
// history. Bids are de-duplicated and sorted ascending by effective time;
// only the poll loop that owns the listing mutates it.
type Listing struct {
	ID              string           `json:"id"`
	URL             string           `json:"url"`
	DisplayName     string           `json:"displayName,omitempty"`
	Title           string           `json:"title"`
	Currency        string           `json:"currency"`
	Image           string           `json:"image,omitempty"`
	CurrentPrice    *decimal.Decimal `json:"currentPrice,omitempty"`
	EndsAt          *time.Time       `json:"endsAt,omitempty"`
	LastChangeAt    *time.Time       `json:"lastChangeAt,omitempty"`
	LastUpdated     time.Time        `json:"lastUpdated"`
	CurrentInterval time.Duration    `json:"currentInterval"`
	Error           string           `json:"error,omitempty"`
	Bids            []Bid            `json:"bids"`
}

// Remaining returns the time left until the lot closes.
func (l *Listing) Remaining(now time.Time) (time.Duration, bool) {
	if l.EndsAt == nil {
		return 0, false
	}
	return l.EndsAt.Sub(now), true
}

// Snapshot is the per-listing view pushed to consumers: listing fields
// plus the most recent bids in descending order.
type Snapshot struct {
	Listing
	Bids []Bid `json:"bids"`
}

// Snapshot produces the consumer view, newest bid first, capped to limit.
func (l *Listing) Snapshot(limit int) Snapshot {
	if limit <= 0 {
		limit = DefaultSnapshotBids
	}
	n := len(l.Bids)
	if n > limit {
		n = limit
	}
	bids := make([]Bid, 0, n)
	for i := len(l.Bids) - 1; i >= 0 && len(bids) < n; i-- {
		bids = append(bids, l.Bids[i])
	}
	snap := Snapshot{Listing: *l, Bids: bids}
	snap.Listing.Bids = nil
	return snap
}

// AlertState tracks the notification machine's per-listing memory. It is
// owned exclusively by that machine; the reconciliation engine never
// reads it.
type AlertState struct {
	LastKnownPrice *decimal.Decimal `json:"lastKnownPrice,omitempty"`
	LastBidAlertAt *time.Time       `json:"lastBidAlertAt,omitempty"`
	Last30mPingAt  *time.Time       `json:"last30mPingAt,omitempty"`
	MessageID      string           `json:"messageId,omitempty"`
	LastEditAt     *time.Time       `json:"lastEditAt,omitempty"`
}
