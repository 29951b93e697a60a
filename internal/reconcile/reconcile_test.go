package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SloeberX/auction-tracker/internal/auction"
	"github.com/SloeberX/auction-tracker/internal/scrape"
)

var base = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

func amt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func amtPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func tsPtr(t time.Time) *time.Time {
	return &t
}

func timeRow(v int64, at time.Time) scrape.BidRow {
	return scrape.BidRow{Amount: amtPtr(v), TimeISO: tsPtr(at)}
}

func dateRow(v int64, day time.Time) scrape.BidRow {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return scrape.BidRow{Amount: amtPtr(v), DateISO: &d}
}

func timeBid(v int64, at time.Time) auction.Bid {
	return auction.Bid{Amount: amt(v), TimeISO: tsPtr(at), Source: auction.SourceScrapedTime}
}

func dateBid(v int64, day time.Time) auction.Bid {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return auction.Bid{Amount: amt(v), DateISO: &d, Source: auction.SourceScrapedDate}
}

func TestMergeAppendsNewRows(t *testing.T) {
	e := New(Options{})

	out, dirty := e.Merge(nil, []scrape.BidRow{timeRow(100, base), timeRow(110, base.Add(time.Hour))})
	if !dirty {
		t.Fatal("fresh rows must mark the history dirty")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 bids, got %d", len(out))
	}
	if out[0].Source != auction.SourceScrapedTime {
		t.Fatalf("expected scraped-time source, got %s", out[0].Source)
	}
}

func TestMergeDropsRowsWithoutAmount(t *testing.T) {
	e := New(Options{})

	neg := decimal.NewFromInt(-5)
	rows := []scrape.BidRow{
		{TimeISO: tsPtr(base)},
		{Amount: &neg, TimeISO: tsPtr(base)},
	}
	out, dirty := e.Merge(nil, rows)
	if dirty || len(out) != 0 {
		t.Fatalf("rows without a valid amount must be dropped, got %d bids", len(out))
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	e := New(Options{})
	rows := []scrape.BidRow{timeRow(100, base), dateRow(120, base.Add(24*time.Hour))}

	out, _ := e.Merge(nil, rows)
	again, dirty := e.Merge(out, rows)
	if dirty {
		t.Fatal("re-merging the same rows must not be dirty")
	}
	if len(again) != len(out) {
		t.Fatalf("re-merge changed length: %d != %d", len(again), len(out))
	}
}

func TestMergeUpgradesDateToTime(t *testing.T) {
	e := New(Options{})
	existing := []auction.Bid{dateBid(100, base)}

	out, dirty := e.Merge(existing, []scrape.BidRow{timeRow(100, base.Add(3*time.Hour))})
	if !dirty {
		t.Fatal("precision upgrade must mark the history dirty")
	}
	if len(out) != 1 {
		t.Fatalf("upgrade must not add an entry, got %d", len(out))
	}
	if out[0].Source != auction.SourceScrapedTime || out[0].TimeISO == nil {
		t.Fatalf("entry should now carry the exact time, got %+v", out[0])
	}
}

func TestMergeNeverDowngrades(t *testing.T) {
	e := New(Options{})
	obs := auction.Bid{Amount: amt(100), TimeISO: tsPtr(base), Source: auction.SourceObserved}

	out, dirty := e.Merge([]auction.Bid{obs}, []scrape.BidRow{dateRow(100, base)})
	if dirty {
		t.Fatal("a coarser row must never replace an observed entry")
	}
	if out[0].Source != auction.SourceObserved {
		t.Fatalf("source downgraded to %s", out[0].Source)
	}
}

func TestMergePreciseWindow(t *testing.T) {
	e := New(Options{})
	existing := []auction.Bid{timeBid(100, base)}

	out, _ := e.Merge(existing, []scrape.BidRow{timeRow(100, base.Add(9*time.Minute))})
	if len(out) != 1 {
		t.Fatalf("exact pair within 10m must fold, got %d entries", len(out))
	}

	out, _ = e.Merge(existing, []scrape.BidRow{timeRow(100, base.Add(11*time.Minute))})
	if len(out) != 2 {
		t.Fatalf("exact pair outside 10m must stay distinct, got %d entries", len(out))
	}
}

func TestMergeTimelessEntryUpgrades(t *testing.T) {
	e := New(Options{})
	existing := []auction.Bid{{Amount: amt(100), Source: auction.SourceUnknown}}

	out, dirty := e.Merge(existing, []scrape.BidRow{timeRow(100, base)})
	if !dirty || len(out) != 1 {
		t.Fatalf("timeless entry must absorb the timed row, got %d entries", len(out))
	}
	if out[0].TimeISO == nil {
		t.Fatal("timeless entry should have gained the exact time")
	}
}

func TestMergePrefersHighestRankCandidate(t *testing.T) {
	e := New(Options{})
	existing := []auction.Bid{
		dateBid(100, base),
		timeBid(100, base.Add(2*time.Minute)),
	}

	out, _ := e.Merge(existing, []scrape.BidRow{timeRow(100, base)})
	if len(out) != 2 {
		t.Fatalf("row must fold into the existing timed entry, got %d entries", len(out))
	}
	// The date-only entry must be untouched.
	if out[0].Source != auction.SourceScrapedDate {
		t.Fatalf("wrong candidate chosen: %+v", out[0])
	}
}

func TestCollapseFoldsDuplicates(t *testing.T) {
	e := New(Options{})
	bids := []auction.Bid{
		timeBid(100, base),
		timeBid(100, base.Add(4*time.Minute)),
		dateBid(120, base),
		dateBid(120, base.Add(6*time.Hour)),
	}

	out := e.Collapse(bids)
	if len(out) != 2 {
		t.Fatalf("expected 2 canonical entries, got %d", len(out))
	}
}

func TestCollapseOrderIndependent(t *testing.T) {
	e := New(Options{})
	a := []auction.Bid{timeBid(100, base), dateBid(100, base), timeBid(110, base.Add(time.Hour))}
	b := []auction.Bid{timeBid(110, base.Add(time.Hour)), timeBid(100, base), dateBid(100, base)}

	ca := e.Collapse(a)
	cb := e.Collapse(b)
	if len(ca) != len(cb) {
		t.Fatalf("collapse depends on input order: %d != %d", len(ca), len(cb))
	}
	for i := range ca {
		if !ca[i].Amount.Equal(cb[i].Amount) || ca[i].Source != cb[i].Source {
			t.Fatalf("entry %d differs: %+v vs %+v", i, ca[i], cb[i])
		}
	}
}

func TestCollapseIdempotent(t *testing.T) {
	e := New(Options{})
	bids := []auction.Bid{timeBid(100, base), dateBid(100, base), timeBid(150, base.Add(time.Hour))}

	once := e.Collapse(bids)
	twice := e.Collapse(once)
	if len(once) != len(twice) {
		t.Fatalf("collapse is not idempotent: %d != %d", len(once), len(twice))
	}
}

func TestCollapseSortsByEffectiveTime(t *testing.T) {
	e := New(Options{})
	bids := []auction.Bid{
		timeBid(150, base.Add(2*time.Hour)),
		{Amount: amt(90), Source: auction.SourceUnknown},
		timeBid(100, base),
	}

	out := e.Collapse(bids)
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	if out[0].Source != auction.SourceUnknown {
		t.Fatal("timeless entries must sort first")
	}
	if !out[1].Amount.Equal(amt(100)) || !out[2].Amount.Equal(amt(150)) {
		t.Fatalf("entries not in ascending time order: %+v", out)
	}
}

func TestReconcileSecondPassClean(t *testing.T) {
	e := New(Options{})
	rows := []scrape.BidRow{
		timeRow(100, base),
		dateRow(100, base),
		timeRow(120, base.Add(30*time.Minute)),
	}

	out, dirty := e.Reconcile(nil, rows)
	if !dirty {
		t.Fatal("first pass must be dirty")
	}

	out2, dirty := e.Reconcile(out, rows)
	if dirty {
		t.Fatal("second pass over identical rows must be clean")
	}
	if len(out2) != len(out) {
		t.Fatalf("second pass changed length: %d != %d", len(out2), len(out))
	}
}

func TestDateOnlyPairSameCalendarDay(t *testing.T) {
	e := New(Options{PreciseWindow: 10 * time.Minute, CoarseWindow: 14 * 24 * time.Hour})
	existing := []auction.Bid{dateBid(100, base)}

	out, _ := e.Merge(existing, []scrape.BidRow{dateRow(100, base.Add(23*time.Hour))})
	if len(out) != 1 {
		t.Fatalf("date-only rows on the same calendar day must fold, got %d", len(out))
	}

	out, _ = e.Merge(existing, []scrape.BidRow{dateRow(100, base.Add(20*24*time.Hour))})
	if len(out) != 2 {
		t.Fatalf("date-only rows outside the coarse window must stay distinct, got %d", len(out))
	}
}
