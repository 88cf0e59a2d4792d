package cli

import (
	"github.com/spf13/cobra"

	"quantscraper/internal/app"
)

var (
	combinePrimary   string
	combineSecondary string
	combineOut       string
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Merge two published exchange tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Combine(cmd.Context(), app.CombineOptions{
			Primary:   combinePrimary,
			Secondary: combineSecondary,
			Out:       combineOut,
		})
	},
}

func init() {
	combineCmd.Flags().StringVar(&combinePrimary, "primary", "", "Exchange whose non-volume columns win (defaults to config)")
	combineCmd.Flags().StringVar(&combineSecondary, "secondary", "", "Exchange merged into the primary (defaults to config)")
	combineCmd.Flags().StringVar(&combineOut, "out", "", "Output file; format follows the extension (defaults to the combined artifact)")
}
