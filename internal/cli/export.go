package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/SloeberX/auction-tracker/internal/app"
)

var (
	exportListing   string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a lot's bid history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportListing == "" {
			return errors.New("--listing is required")
		}

		opts := app.ExportOptions{
			ListingID: exportListing,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportListing, "listing", "", "Listing ID to export")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
