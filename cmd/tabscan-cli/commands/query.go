package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query <search terms...>",
	Short: "Searches the site and lists the matching tabs.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, cleanup, err := newScanner()
		if err != nil {
			return err
		}
		defer cleanup()

		result := sc.ScanQuery(cmd.Context(), strings.Join(args, " "), flags.options())
		return printResult(cmd.OutOrStdout(), result)
	},
}
