package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addTitle string

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Register a lot with the running daemon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := getApp().AddListing(cmd.Context(), args[0], addTitle)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", id)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addTitle, "title", "", "Display name for the lot")
}
