package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/engine"
	"github.com/fieldops/maintsched/pkg/legacy"
)

type createOptions struct {
	date         string
	equipment    string
	kind         string
	priority     string
	assignedTo   string
	cost         float64
	description  string
	recurrence   string
	interval     int
	count        int
	duration     int
	durationUnit string
	until        string
}

var createOpts createOptions

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a schedule and its occurrences",
	Long: `Create an anchor schedule. With --recurrence the occurrences it generates
are created in the same batch. --recurrence accepts a frequency (daily, weekly,
monthly, yearly) or a legacy label such as "quinzenal" or "trimestral".
At most one of --count, --duration or --until may be given; with none the
series runs until the expansion cap.`,
	RunE: runCreate,
}

func init() {
	f := createCmd.Flags()
	f.StringVar(&createOpts.date, "date", "", "Scheduled date, YYYY-MM-DD or RFC 3339 (required)")
	f.StringVar(&createOpts.equipment, "equipment", "", "Equipment reference")
	f.StringVar(&createOpts.kind, "type", "preventive", "Maintenance type")
	f.StringVar(&createOpts.priority, "priority", "", "Priority")
	f.StringVar(&createOpts.assignedTo, "assigned-to", "", "Assignee")
	f.Float64Var(&createOpts.cost, "cost", 0, "Estimated cost")
	f.StringVar(&createOpts.description, "description", "", "Description")
	f.StringVarP(&createOpts.recurrence, "recurrence", "r", "", "Recurrence frequency or legacy label")
	f.IntVar(&createOpts.interval, "interval", 0, "Repeat every N units (overrides the label's interval)")
	f.IntVar(&createOpts.count, "count", 0, "Stop after N occurrences")
	f.IntVar(&createOpts.duration, "duration", 0, "Stop after this many --duration-unit from the first date")
	f.StringVar(&createOpts.durationUnit, "duration-unit", "months", "Unit for --duration: weeks or months")
	f.StringVar(&createOpts.until, "until", "", "Stop after this date, YYYY-MM-DD or RFC 3339")
	_ = createCmd.MarkFlagRequired("date")
}

// parseDate accepts RFC 3339 or a bare date at midnight in loc.
func parseDate(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", v)
	}
	return t, nil
}

func (o createOptions) rule(loc *time.Location) (*core.RecurrenceRule, error) {
	if o.recurrence == "" {
		return nil, nil
	}
	rec, err := legacy.ParseRecurrence(o.recurrence)
	if err != nil {
		return nil, err
	}
	if o.interval > 0 {
		rec.Interval = o.interval
	}

	set := 0
	mode := core.TerminateIndefinite
	if o.count > 0 {
		set++
		mode = core.TerminateAfterCount
	}
	if o.duration > 0 {
		set++
		mode = core.TerminateAfterDuration
	}
	if o.until != "" {
		set++
		mode = core.TerminateOnDate
	}
	if set > 1 {
		return nil, errors.New("use only one of --count, --duration or --until")
	}

	rule := rec.Rule(mode)
	switch mode {
	case core.TerminateAfterCount:
		rule.Count = o.count
	case core.TerminateAfterDuration:
		rule.Duration = o.duration
		rule.DurationUnit = core.DurationUnit(o.durationUnit)
	case core.TerminateOnDate:
		until, err := parseDate(o.until, loc)
		if err != nil {
			return nil, err
		}
		rule.Until = &until
	}
	return &rule, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.engine.Expander().Location()
	date, err := parseDate(createOpts.date, loc)
	if err != nil {
		return err
	}
	rule, err := createOpts.rule(loc)
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	res, err := a.engine.Create(ctx, engine.CreateRequest{
		ScheduledDate:   date,
		Rule:            rule,
		EquipmentRef:    createOpts.equipment,
		MaintenanceType: createOpts.kind,
		Priority:        createOpts.priority,
		AssignedTo:      createOpts.assignedTo,
		EstimatedCost:   createOpts.cost,
		Description:     createOpts.description,
	})
	if err != nil {
		return errors.Wrap(err, "create schedule")
	}

	members, err := a.engine.Members(ctx, res.AnchorID)
	if err != nil {
		return errors.Wrap(err, "list created schedules")
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ANCHOR\tOCCURRENCES\tTRUNCATED")
	fmt.Fprintf(w, "%s\t%d\t%s\n", res.AnchorID, res.Occurrences, yesNo(res.Truncated))
	fmt.Fprintln(w)
	writeSchedules(w, members)
	if err := w.Flush(); err != nil {
		return err
	}
	if res.Truncated {
		fmt.Fprintf(stdout, "Warning: series stopped at the cap of %d occurrences.\n", res.Cap)
	}
	return nil
}

func writeSchedules(w *tabwriter.Writer, schedules []*core.Schedule) {
	fmt.Fprintln(w, "ID\tDATE\tSTATUS\tEQUIPMENT")
	for _, s := range schedules {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.ID,
			s.ScheduledDate.Format(time.DateOnly),
			legacy.StatusLabel(s.Status),
			s.EquipmentRef,
		)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
