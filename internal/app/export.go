package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/SloeberX/auction-tracker/internal/auction"
)

// Export renders one listing's canonical bid history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.ListingID == "" {
		return errors.New("--listing is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, err := a.openStore()
	if err != nil {
		return err
	}

	history, err := store.LoadHistory()
	if err != nil {
		return err
	}
	bids, ok := history[opts.ListingID]
	if !ok {
		return fmt.Errorf("no history for listing %s", opts.ListingID)
	}
	if len(bids) == 0 {
		a.Logger.Info().Str("listing", opts.ListingID).Msg("bid history is empty")
		return nil
	}

	downsampled := downsampleBids(bids, opts.MaxPoints)
	a.Logger.Info().Int("total", len(bids)).Int("exported", len(downsampled)).Msg("exporting bid history")

	if opts.CSVPath != "" {
		if err := writeBidsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBidsPNG(opts.PNGPath, opts.ListingID, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleBids(bids []auction.Bid, max int) []auction.Bid {
	if max <= 0 || len(bids) <= max {
		return bids
	}

	result := make([]auction.Bid, 0, max)
	step := float64(len(bids)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(bids) {
			idx = len(bids) - 1
		}
		result = append(result, bids[idx])
	}
	return result
}

func writeBidsCSV(path string, bids []auction.Bid) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"effective_time", "amount", "amount_text", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, bid := range bids {
		ts := ""
		if t, ok := bid.EffectiveTime(); ok {
			ts = t.UTC().Format(time.RFC3339)
		}
		record := []string{
			ts,
			bid.Amount.String(),
			bid.AmountText,
			string(bid.Source),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeBidsPNG(path, listingID string, bids []auction.Bid) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(bids))
	y := make([]float64, 0, len(bids))
	for _, bid := range bids {
		t, ok := bid.EffectiveTime()
		if !ok {
			continue
		}
		x = append(x, t)
		y = append(y, bid.Amount.InexactFloat64())
	}
	if len(x) < 2 {
		return errors.New("not enough timestamped bids to chart")
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  "Bid history " + listingID,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Amount",
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Bids",
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
