package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/flipstore/internal/sqlite"
)

// conversionView is the JSON form of a conversion report.
type conversionView struct {
	State          string   `json:"state"`
	Pending        []string `json:"pending,omitempty"`
	Converted      []string `json:"converted,omitempty"`
	Skipped        []string `json:"skipped,omitempty"`
	BackupFailures []string `json:"backup_failures,omitempty"`
}

func (a *app) newConvertCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert legacy JSON documents into the database",
		Long: "Convert per-account JSON documents found in the data directory. Each\n" +
			"converted document is backed up first; a completion marker prevents\n" +
			"a second run. With --status, only report what is pending.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend(true)
			if err != nil {
				return err
			}
			defer backend.Detach()

			var report *sqlite.ConversionReport
			if status {
				report, err = backend.ConversionStatus()
			} else {
				report, err = backend.Convert()
			}
			if err != nil {
				return sysError("convert: %s", err)
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), conversionView{
					State:          report.State.String(),
					Pending:        report.Pending,
					Converted:      report.Converted,
					Skipped:        report.Skipped,
					BackupFailures: report.BackupFailures,
				})
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "report pending documents without converting")
	return cmd
}

func printReport(w io.Writer, report *sqlite.ConversionReport) {
	fmt.Fprintf(w, "State: %s\n", report.State)
	list := func(label string, names []string) {
		if len(names) > 0 {
			fmt.Fprintf(w, "%s: %s\n", label, strings.Join(names, ", "))
		}
	}
	if report.State == sqlite.ConversionNeedsMigration {
		list("Pending", report.Pending)
	}
	list("Converted", report.Converted)
	list("Skipped", report.Skipped)
	list("Backup failures", report.BackupFailures)
}
