package cli

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/family"
)

var (
	familyDeleteScope string
	familyDeleteForce bool
)

var familyCmd = &cobra.Command{
	Use:   "family",
	Short: "Inspect or delete a recurrence family",
}

var familyInfoCmd = &cobra.Command{
	Use:   "info <schedule-id>",
	Short: "Show the family a schedule belongs to",
	Args:  cobra.ExactArgs(1),
	RunE:  runFamilyInfo,
}

var familyListCmd = &cobra.Command{
	Use:   "list <schedule-id>",
	Short: "List every member of a schedule's family by date",
	Args:  cobra.ExactArgs(1),
	RunE:  runFamilyList,
}

var familyDeleteCmd = &cobra.Command{
	Use:   "delete <schedule-id>",
	Short: "Delete a schedule or its whole family",
	Long: `Delete one schedule (--scope self) or its whole recurrence family
(--scope family). The family is deleted in one transaction and the delete
fails if membership changed after the confirmation prompt.`,
	Args: cobra.ExactArgs(1),
	RunE: runFamilyDelete,
}

func init() {
	familyDeleteCmd.Flags().StringVar(&familyDeleteScope, "scope", string(core.ScopeFamily), "self or family")
	familyDeleteCmd.Flags().BoolVarP(&familyDeleteForce, "force", "f", false, "Skip confirmation prompt")
	familyCmd.AddCommand(familyInfoCmd, familyListCmd, familyDeleteCmd)
}

func runFamilyInfo(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.engine.FamilyInfo(cmdContext(cmd), args[0])
	if err != nil {
		return errors.Wrapf(err, "family of %s", args[0])
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ANCHOR\tRECURRING\tSIBLINGS\tIS ANCHOR")
	fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", info.AnchorID, yesNo(info.HasRecurrence), info.SiblingCount, yesNo(info.IsAnchor))
	return w.Flush()
}

func runFamilyList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	members, err := a.engine.Members(cmdContext(cmd), args[0])
	if err != nil {
		return errors.Wrapf(err, "family of %s", args[0])
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	writeSchedules(w, members)
	return w.Flush()
}

func runFamilyDelete(cmd *cobra.Command, args []string) error {
	scope := core.DeleteScope(familyDeleteScope)
	if !scope.Valid() {
		return errors.Wrapf(core.ErrInvalidScope, "scope %q", familyDeleteScope)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmdContext(cmd)
	id := args[0]
	var opts []family.DeleteOption
	if scope == core.ScopeFamily {
		info, err := a.engine.FamilyInfo(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "family of %s", id)
		}
		total := info.SiblingCount + 1
		if !familyDeleteForce {
			fmt.Fprintf(stdout, "This will delete %d schedules in family %s. Continue? [y/N] ", total, info.AnchorID)
			response, _ := bufio.NewReader(stdin).ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Fprintln(stdout, "Aborted.")
				return nil
			}
		}
		opts = append(opts, family.ExpectMembers(total))
	}

	res, err := a.engine.DeleteFamily(ctx, id, scope, opts...)
	if err != nil {
		return errors.Wrapf(err, "delete %s", id)
	}
	fmt.Fprintf(stdout, "Deleted %d schedules.\n", res.Removed())
	return nil
}
