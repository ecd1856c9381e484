package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(cmdContext(cmd)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Migrated %s database.\n", cfg.Driver)
	return nil
}
