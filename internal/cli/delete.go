package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account>",
		Short: "Delete an account and all of its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			backend, err := a.attachBackend(false)
			if err != nil {
				return err
			}
			defer backend.Detach()

			if err := requireAccount(backend, name); err != nil {
				return err
			}
			if err := backend.DeleteAccount(name); err != nil {
				return sysError("delete account: %s", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
			return nil
		},
	}
}
