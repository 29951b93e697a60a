package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source states where a bid's timestamp came from.
type Source string

const (
	// SourceObserved marks a bid synthesized from a live price change.
	SourceObserved Source = "observed"
	// SourceScrapedTime marks a bid scraped with an exact timestamp.
	SourceScrapedTime Source = "scraped-time"
	// SourceScrapedDate marks a bid scraped with only a calendar date.
	SourceScrapedDate Source = "scraped-date"
	// SourceUnknown marks a bid with no usable timestamp at all.
	SourceUnknown Source = "unknown"
)

// Rank orders sources by timestamp trustworthiness, higher wins.
func (s Source) Rank() int {
	switch s {
	case SourceObserved:
		return 3
	case SourceScrapedTime:
		return 2
	case SourceScrapedDate:
		return 1
	default:
		return 0
	}
}

// Bid is one recorded price point in a listing's history.
// At most one of TimeISO/DateISO is set; neither means the time is unknown.
type Bid struct {
	Amount     decimal.Decimal `json:"amount"`
	AmountText string          `json:"amountText,omitempty"`
	TimeISO    *time.Time      `json:"timeISO,omitempty"`
	DateISO    *time.Time      `json:"dateISO,omitempty"`
	Source     Source          `json:"source"`
}

// EffectiveTime resolves the bid's timestamp, preferring the exact time.
func (b Bid) EffectiveTime() (time.Time, bool) {
	if b.TimeISO != nil {
		return *b.TimeISO, true
	}
	if b.DateISO != nil {
		return *b.DateISO, true
	}
	return time.Time{}, false
}

// DateOnly reports whether the bid carries only a calendar date.
func (b Bid) DateOnly() bool {
	return b.TimeISO == nil && b.DateISO != nil
}

// ValidAmount reports whether d may enter a canonical bid list.
func ValidAmount(d decimal.Decimal) bool {
	return !d.IsNegative()
}
