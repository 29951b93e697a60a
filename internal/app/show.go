package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/SloeberX/auction-tracker/internal/storage"
)

// Show prints tracked listings, or one listing's recent bids.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	if opts.ListingID == "" {
		return a.showListings(store)
	}
	return a.showHistory(store, opts)
}

func (a *App) showListings(store *storage.Store) error {
	listings, err := store.LoadListings()
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Fprintln(os.Stdout, "no listings tracked")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTitle\tPrice\tEnds (UTC)\tUpdated (UTC)\tError")

	for _, l := range listings {
		price := "-"
		if l.CurrentPrice != nil {
			price = l.CurrentPrice.StringFixed(2)
		}
		ends := "-"
		if l.EndsAt != nil {
			ends = l.EndsAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID,
			l.Title,
			price,
			ends,
			l.LastUpdated.UTC().Format(time.RFC3339),
			sanitizeInline(l.Error),
		)
	}

	return writer.Flush()
}

func (a *App) showHistory(store *storage.Store, opts ShowOptions) error {
	history, err := store.LoadHistory()
	if err != nil {
		return err
	}
	bids := history[opts.ListingID]
	if len(bids) == 0 {
		fmt.Fprintln(os.Stdout, "no bids recorded")
		return nil
	}

	limit := opts.Limit
	if limit <= 0 || limit > len(bids) {
		limit = len(bids)
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAmount\tSource\tText")

	// Newest first.
	for i := len(bids) - 1; i >= len(bids)-limit; i-- {
		bid := bids[i]
		ts := "-"
		if t, ok := bid.EffectiveTime(); ok {
			ts = t.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			ts,
			bid.Amount.StringFixed(2),
			bid.Source,
			sanitizeInline(bid.AmountText),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
