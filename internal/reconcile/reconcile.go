// Package reconcile merges scraped bid rows into a listing's canonical
// history. The site reports timestamps at wildly different precisions
// (exact times, bare dates, sometimes nothing), so merging works on a
// per-source precision rank: higher-precision data upgrades an existing
// entry in place, never the other way around.
package reconcile

import (
	"sort"
	"time"

	"github.com/SloeberX/auction-tracker/internal/auction"
	"github.com/SloeberX/auction-tracker/internal/scrape"
)

// Options tune the matching windows.
type Options struct {
	// PreciseWindow bounds the distance between two exact timestamps that
	// still refer to the same bid.
	PreciseWindow time.Duration
	// CoarseWindow is the safety net when at least one side only carries a
	// date; the site's week-boundary date heuristics can be days off.
	CoarseWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.PreciseWindow <= 0 {
		o.PreciseWindow = 10 * time.Minute
	}
	if o.CoarseWindow <= 0 {
		o.CoarseWindow = 14 * 24 * time.Hour
	}
	return o
}

// Engine reconciles scrape snapshots against canonical bid lists. It is
// stateless; both inputs are left untouched.
type Engine struct {
	opts Options
}

// New constructs an Engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Reconcile merges the scraped rows into existing and collapses the
// result into canonical form. The returned flag reports whether anything
// was added, upgraded, or collapsed away.
func (e *Engine) Reconcile(existing []auction.Bid, rows []scrape.BidRow) ([]auction.Bid, bool) {
	merged, dirty := e.Merge(existing, rows)
	collapsed := e.Collapse(merged)
	if len(collapsed) != len(merged) {
		dirty = true
	}
	return collapsed, dirty
}

// Merge runs the matching phase: each scraped row either upgrades the
// best-matching existing entry or is appended as new. Rows without a
// usable amount are dropped silently.
func (e *Engine) Merge(existing []auction.Bid, rows []scrape.BidRow) ([]auction.Bid, bool) {
	out := make([]auction.Bid, len(existing))
	copy(out, existing)

	dirty := false
	for _, row := range rows {
		in, ok := fromRow(row)
		if !ok {
			continue
		}

		idx := e.findCandidate(out, in)
		if idx < 0 {
			out = append(out, in)
			dirty = true
			continue
		}

		if in.Source.Rank() > out[idx].Source.Rank() {
			out[idx] = upgrade(out[idx], in)
			dirty = true
		}
	}

	return out, dirty
}

// Collapse sorts ascending by effective time and folds together every
// pair of entries that describe the same bid, keeping the higher
// precision of the two. The result is order-independent: every
// (amount, time-bucket) pair appears exactly once.
func (e *Engine) Collapse(bids []auction.Bid) []auction.Bid {
	sorted := make([]auction.Bid, len(bids))
	copy(sorted, bids)
	sortByEffectiveTime(sorted)

	out := make([]auction.Bid, 0, len(sorted))
	for _, b := range sorted {
		merged := false
		for i := len(out) - 1; i >= 0; i-- {
			if e.collapseMatch(out[i], b) {
				out[i] = preferHigherRank(out[i], b)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, b)
		}
	}
	return out
}

// findCandidate returns the index of the eligible entry with the highest
// precision rank, first found winning ties, or -1.
func (e *Engine) findCandidate(existing []auction.Bid, in auction.Bid) int {
	best := -1
	bestRank := -1
	for i, cand := range existing {
		if !e.matchEligible(cand, in) {
			continue
		}
		if r := cand.Source.Rank(); r > bestRank {
			best, bestRank = i, r
		}
	}
	return best
}

func (e *Engine) matchEligible(existing, in auction.Bid) bool {
	if !existing.Amount.Equal(in.Amount) {
		return false
	}

	exT, exOK := existing.EffectiveTime()
	inT, inOK := in.EffectiveTime()
	switch {
	case !exOK:
		// An entry without any time is always eligible for upgrade.
		return true
	case !inOK:
		// A timeless row folds into whichever entry carries its amount.
		return true
	case existing.TimeISO != nil && in.TimeISO != nil:
		return absDelta(exT, inT) <= e.opts.PreciseWindow
	case existing.DateOnly() && in.DateOnly() && sameCalendarDay(exT, inT):
		return true
	default:
		return absDelta(exT, inT) <= e.opts.CoarseWindow
	}
}

func (e *Engine) collapseMatch(a, b auction.Bid) bool {
	if !a.Amount.Equal(b.Amount) {
		return false
	}
	if a.DateOnly() && b.DateOnly() {
		at, _ := a.EffectiveTime()
		bt, _ := b.EffectiveTime()
		return sameCalendarDay(at, bt)
	}
	at, aok := a.EffectiveTime()
	bt, bok := b.EffectiveTime()
	if !aok || !bok {
		return !aok && !bok
	}
	return absDelta(at, bt) <= e.opts.PreciseWindow
}

func fromRow(row scrape.BidRow) (auction.Bid, bool) {
	if row.Amount == nil || !auction.ValidAmount(*row.Amount) {
		return auction.Bid{}, false
	}

	b := auction.Bid{Amount: *row.Amount, AmountText: row.AmountText, Source: auction.SourceUnknown}
	switch {
	case row.TimeISO != nil:
		t := *row.TimeISO
		b.TimeISO = &t
		b.Source = auction.SourceScrapedTime
	case row.DateISO != nil:
		d := *row.DateISO
		b.DateISO = &d
		b.Source = auction.SourceScrapedDate
	}
	return b, true
}

func upgrade(old, in auction.Bid) auction.Bid {
	out := old
	out.TimeISO = in.TimeISO
	out.DateISO = in.DateISO
	out.Source = in.Source
	if out.AmountText == "" {
		out.AmountText = in.AmountText
	}
	return out
}

func preferHigherRank(a, b auction.Bid) auction.Bid {
	winner, loser := a, b
	if b.Source.Rank() > a.Source.Rank() {
		winner, loser = b, a
	}
	if winner.AmountText == "" {
		winner.AmountText = loser.AmountText
	}
	return winner
}

func sortByEffectiveTime(bids []auction.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		ti, iok := bids[i].EffectiveTime()
		tj, jok := bids[j].EffectiveTime()
		if iok != jok {
			return !iok // timeless entries sort first
		}
		return ti.Before(tj)
	})
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
