package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SloeberX/auction-tracker/internal/app"
)

var (
	showListing string
	showLimit   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display tracked lots, or one lot's bid history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			ListingID: showListing,
			Limit:     showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showListing, "listing", "", "Listing ID; omit to list all tracked lots")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of bids to display")
}
