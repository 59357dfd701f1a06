package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/solarcharger/core/store"
)

var historyDays int

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print every exported path with its format and initial value",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tFORMAT\tINITIAL")
		for _, def := range store.NewSchema(historyDays).Defs() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", def.Path, def.Format, def.Format.Render(def.Initial))
		}
		return w.Flush()
	},
}

func init() {
	schemaCmd.Flags().IntVar(&historyDays, "history-days", 0, "number of daily history groups")
	rootCmd.AddCommand(schemaCmd)
}
