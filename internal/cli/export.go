package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quantscraper/internal/app"
)

var (
	exportExchange string
	exportColumn   string
	exportTopN     int
	exportPNGPath  string
	exportCSVPath  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the top rows of a published table as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportExchange == "" {
			return fmt.Errorf("--exchange must be provided")
		}
		opts := app.ExportOptions{
			Exchange: exportExchange,
			Column:   exportColumn,
			TopN:     exportTopN,
			PNGPath:  exportPNGPath,
			CSVPath:  exportCSVPath,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportExchange, "exchange", "", "Exchange table to export (or \"combined\")")
	exportCmd.Flags().StringVar(&exportColumn, "column", "", "Numeric column to rank and chart (defaults to 1m volume)")
	exportCmd.Flags().IntVar(&exportTopN, "top", 0, "Number of rows to export (defaults to config)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
