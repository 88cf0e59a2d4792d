package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quantscraper/internal/app"
)

var (
	showLimit    int
	showExchange string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent cycle reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:    showLimit,
			Exchange: showExchange,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of cycles to display")
	showCmd.Flags().StringVar(&showExchange, "exchange", "", "Only show cycles of this exchange")
}
