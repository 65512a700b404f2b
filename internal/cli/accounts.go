package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List stored accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend(false)
			if err != nil {
				return err
			}
			defer backend.Detach()

			names, err := backend.AccountNames()
			if err != nil {
				return sysError("list accounts: %s", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), names)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
