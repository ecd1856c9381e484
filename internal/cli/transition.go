package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/legacy"
)

type transitionOptions struct {
	notes    string
	cost     float64
	duration time.Duration
}

var transitionOpts transitionOptions

var transitionCmd = &cobra.Command{
	Use:   "transition <schedule-id> <status>",
	Short: "Move a schedule to another status",
	Long: `Move a schedule to SCHEDULED, IN_PROGRESS, COMPLETED, CONVERTED or CANCELLED.
Legacy spellings such as "concluido" are accepted. COMPLETED records the
--notes, --cost and --duration flags. CONVERTED creates the service order.`,
	Args: cobra.ExactArgs(2),
	RunE: runTransition,
}

func init() {
	f := transitionCmd.Flags()
	f.StringVar(&transitionOpts.notes, "notes", "", "Completion notes")
	f.Float64Var(&transitionOpts.cost, "cost", 0, "Actual cost")
	f.DurationVar(&transitionOpts.duration, "duration", 0, "Actual duration, e.g. 1h30m")
}

func runTransition(cmd *cobra.Command, args []string) error {
	target, err := legacy.ParseStatus(args[1])
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	req := core.TransitionRequest{ScheduleID: args[0], Target: target}
	if target == core.StatusCompleted {
		req.Payload = &core.CompletionPayload{
			Notes:          transitionOpts.notes,
			ActualCost:     transitionOpts.cost,
			ActualDuration: transitionOpts.duration,
		}
	}

	s, err := a.engine.Transition(cmdContext(cmd), req)
	if err != nil {
		return errors.Wrapf(err, "transition %s", args[0])
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tVERSION\tSERVICE ORDER")
	ref := "-"
	if s.ServiceOrderRef != nil {
		ref = *s.ServiceOrderRef
	}
	fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Status, s.Version, ref)
	return w.Flush()
}
