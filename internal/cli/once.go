package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var onceExchange string

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single cycle for one exchange",
	RunE: func(cmd *cobra.Command, args []string) error {
		if onceExchange == "" {
			return fmt.Errorf("--exchange must be provided")
		}
		report, err := getApp().Once(cmd.Context(), onceExchange)
		fmt.Fprintf(cmd.OutOrStdout(), "cycle %s %s: symbols=%d rows=%d dropped=%d published=%d failed=[%s]\n",
			report.ID, report.Status, report.Symbols, report.Rows, len(report.Dropped),
			len(report.Published), strings.Join(report.FailedArtifacts, ","))
		return err
	},
}

func init() {
	onceCmd.Flags().StringVar(&onceExchange, "exchange", "", "Exchange to scrape (binance or bybit)")
}
