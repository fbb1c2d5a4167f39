package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the scanner configuration and readiness.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, cleanup, err := newScanner()
		if err != nil {
			return err
		}
		defer cleanup()

		status := sc.Status()
		out := cmd.OutOrStdout()
		if flags.json {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.AppendRow(table.Row{"Ready", status.Ready})
		t.AppendRow(table.Row{"Version", status.Version})
		for _, endpoint := range status.ConfiguredEndpoints {
			t.AppendRow(table.Row{"Endpoint", endpoint})
		}
		t.AppendRow(table.Row{"Default timeout", fmt.Sprintf("%dms", status.DefaultTimeoutMs)})
		t.AppendRow(table.Row{"Default retries", status.DefaultRetries})
		t.AppendRow(table.Row{"Engines", status.Engines})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
