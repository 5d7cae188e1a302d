package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/example/khutwa/internal/unlock"
	"github.com/example/khutwa/pkg/models"
	"github.com/spf13/cobra"
)

var unitsLearner string

// unitsCmd lists the catalog
var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List the lesson units",
	Long: `List the catalog units in lesson order.

With --learner, the lock state of every unit for that learner is shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var completed []string
		if unitsLearner != "" {
			record, err := a.store.Load(cmd.Context(), unitsLearner)
			if err != nil {
				return err
			}
			completed = record.CompletedUnitIDs
		}
		return printUnits(cmd.OutOrStdout(), a.catalog.Units(), completed, unitsLearner != "")
	},
}

func init() {
	unitsCmd.Flags().StringVarP(&unitsLearner, "learner", "l", "", "Show lock state for this learner")
}

func printUnits(out io.Writer, units []models.UnitContent, completed []string, withState bool) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tSYMBOL\tNAME\tWORD\tSTATE")
	for i, s := range unlock.Resolve(units, completed) {
		u := units[i]
		state := "-"
		if withState {
			switch {
			case s.Completed:
				state = "completed"
			case s.Locked:
				state = "locked"
			default:
				state = "open"
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s %s\t%s\n", i+1, u.ID, u.Symbol, u.Name, u.ImageRef, u.ExampleWord, state)
	}
	return w.Flush()
}
