package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Long:  "Apply pending schema migrations. Legacy conversion is not run; use convert.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Attach applies migrations.
			backend, err := a.attachBackend(true)
			if err != nil {
				return err
			}
			defer backend.Detach()

			version, err := backend.SchemaVersion()
			if err != nil {
				return sysError("read schema version: %s", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"schema_version": version,
					"database":       backend.DatabasePath(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (%s)\n", version, backend.DatabasePath())
			return nil
		},
	}
}
