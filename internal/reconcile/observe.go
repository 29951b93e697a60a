package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SloeberX/auction-tracker/internal/auction"
)

// SynthesizeObserved injects a precisely-timestamped entry when the live
// price widget moved before the site's own bid table caught up. The entry
// is skipped when the canonical list already holds the new amount with an
// exact time (the table was faster for once).
func SynthesizeObserved(bids []auction.Bid, prev, next *decimal.Decimal, now time.Time) ([]auction.Bid, bool) {
	if next == nil || !auction.ValidAmount(*next) {
		return bids, false
	}
	if prev != nil && prev.Equal(*next) {
		return bids, false
	}
	for _, b := range bids {
		if b.TimeISO != nil && b.Amount.Equal(*next) {
			return bids, false
		}
	}

	ts := now
	amount := *next
	out := make([]auction.Bid, len(bids), len(bids)+1)
	copy(out, bids)
	out = append(out, auction.Bid{Amount: amount, TimeISO: &ts, Source: auction.SourceObserved})
	sortByEffectiveTime(out)
	return out, true
}

// PriceChanged reports whether the polled price differs from the previous
// one. A first observation of a finite price counts as a change.
func PriceChanged(prev, next *decimal.Decimal) bool {
	if next == nil {
		return false
	}
	return prev == nil || !prev.Equal(*next)
}
