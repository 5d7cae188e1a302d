package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/example/khutwa/internal/progress"
	"github.com/example/khutwa/internal/reminder"
	"github.com/example/khutwa/pkg/models"
	"github.com/spf13/cobra"
)

var progressRemind bool

// progressCmd inspects learner progress
var progressCmd = &cobra.Command{
	Use:   "progress [learner-id]",
	Short: "Show learner progress",
	Long: `Show the level, streak, completed units and badges of a learner.
Without an id, every enrolled learner is listed.

With --remind, the reminder check is run for the learner and the unit a
reminder would point at is printed instead of being sent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		w := cmd.OutOrStdout()

		if len(args) == 0 {
			ids, err := a.store.LearnerIDs(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := printProgress(ctx, w, a, id); err != nil {
					return err
				}
			}
			return nil
		}

		if progressRemind {
			r := reminder.New(a.catalog, a.store, printNotifier{w: w}, a.cfg.Reminder, reminder.WithLogger(a.log))
			sent, err := r.RunManualCheck(ctx, args[0])
			if err != nil {
				return err
			}
			if !sent {
				fmt.Fprintln(w, "no reminder due")
			}
			return nil
		}
		return printProgress(ctx, w, a, args[0])
	},
}

func init() {
	progressCmd.Flags().BoolVar(&progressRemind, "remind", false, "Run the reminder check for the learner")
}

func printProgress(ctx context.Context, w io.Writer, a *app, learnerID string) error {
	record, err := a.store.Load(ctx, learnerID)
	if err != nil {
		return err
	}
	name := learnerID
	learner, err := a.store.LoadLearner(ctx, learnerID)
	switch {
	case err == nil:
		name = fmt.Sprintf("%s (%s)", learner.Name, learnerID)
	case !errors.Is(err, progress.ErrNotFound):
		return err
	}

	s := progress.Summarize(record, a.catalog.Len())
	fmt.Fprintf(w, "%s\n", name)
	fmt.Fprintf(w, "  level %d  points %d/%d  streak %d\n", s.Level, s.TotalPoints, s.NextLevelAt, s.StreakDays)
	fmt.Fprintf(w, "  units %d/%d: %s\n", s.Completed, s.TotalUnits, strings.Join(record.CompletedUnitIDs, ", "))
	for _, b := range s.EarnedBadges() {
		fmt.Fprintf(w, "  %s %s\n", b.Icon, b.Title)
	}
	return nil
}

// printNotifier writes reminders to the terminal
type printNotifier struct {
	w io.Writer
}

func (n printNotifier) Remind(_ context.Context, learnerID string, unit models.UnitContent) error {
	_, err := fmt.Fprintf(n.w, "reminder for %s: %s %s (%s)\n", learnerID, unit.Symbol, unit.Name, unit.ID)
	return err
}
