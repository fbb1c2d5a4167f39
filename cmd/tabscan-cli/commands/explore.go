package commands

import (
	"github.com/spf13/cobra"
)

var explorePage *int

func init() {
	explorePage = exploreCmd.Flags().Int("page", 1, "Explore page number, used when no URL is given.")
	rootCmd.AddCommand(exploreCmd)
}

var exploreCmd = &cobra.Command{
	Use:   "explore [url] [--page <n>]",
	Short: "Scans a listing page, the explore page by default.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, cleanup, err := newScanner()
		if err != nil {
			return err
		}
		defer cleanup()

		target := sc.ExplorePageNumber(*explorePage)
		if len(args) == 1 {
			target = args[0]
		}
		result := sc.ScanExplorePage(cmd.Context(), target, flags.options())
		return printResult(cmd.OutOrStdout(), result)
	},
}
