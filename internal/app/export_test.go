package app

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SloeberX/auction-tracker/internal/auction"
)

func sampleBids(n int) []auction.Bid {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	bids := make([]auction.Bid, 0, n)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		bids = append(bids, auction.Bid{
			Amount:  decimal.NewFromInt(int64(100 + i)),
			TimeISO: &ts,
			Source:  auction.SourceScrapedTime,
		})
	}
	return bids
}

func TestDownsampleBids(t *testing.T) {
	bids := sampleBids(100)

	out := downsampleBids(bids, 10)
	if len(out) != 10 {
		t.Fatalf("expected 10 points, got %d", len(out))
	}
	if !out[0].Amount.Equal(bids[0].Amount) {
		t.Fatal("first point must survive downsampling")
	}
	if !out[len(out)-1].Amount.Equal(bids[len(bids)-1].Amount) {
		t.Fatal("last point must survive downsampling")
	}

	if got := downsampleBids(bids, 200); len(got) != 100 {
		t.Fatalf("no downsampling needed, got %d points", len(got))
	}
}

func TestWriteBidsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "bids.csv")
	bids := sampleBids(3)
	bids = append(bids, auction.Bid{Amount: decimal.NewFromInt(90), Source: auction.SourceUnknown})

	if err := writeBidsCSV(path, bids); err != nil {
		t.Fatalf("writeBidsCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d", len(records))
	}
	if records[0][0] != "effective_time" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[4][0] != "" {
		t.Fatal("timeless bids must export an empty timestamp")
	}
}
