package scrape

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Result is the best-effort snapshot the extractor produced for one lot
// page. Every field may be absent; absent means "not seen this cycle".
type Result struct {
	Title        string           `json:"title,omitempty"`
	Image        string           `json:"image,omitempty"`
	Currency     string           `json:"currency,omitempty"`
	CurrentPrice *decimal.Decimal `json:"currentPrice,omitempty"`
	EndsAt       *time.Time       `json:"endsAt,omitempty"`
	Bids         []BidRow         `json:"bids"`
}

// BidRow is one observed row of the lot's bid table. Amount may be nil
// when the extractor could not parse a usable number; such rows are
// dropped during reconciliation.
type BidRow struct {
	Amount     *decimal.Decimal `json:"amount"`
	AmountText string           `json:"amountText,omitempty"`
	TimeISO    *time.Time       `json:"timeISO,omitempty"`
	DateISO    *time.Time       `json:"dateISO,omitempty"`
}

// Fetcher retrieves a lot page snapshot. An error means "no data this
// cycle"; callers record it and retry on the next scheduled poll.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
}
