package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/flipstore/internal/export"
)

type exportFlags struct {
	format   string
	out      string
	since    string
	interval string
}

func (a *app) newExportCmd() *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export <account>",
		Short: "Export an account's trades as CSV, XLSX or YAML",
		Long: `Export writes every offer of the account's items in the selected window,
with the realized profit per item.

--since accepts a date (2006-01-02), an RFC 3339 time, or a duration
counted back from now (e.g. 24h).

Example:
  flipstore export Zez --format csv --since 168h
  flipstore export Zez --format xlsx --out zez.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd, args[0], f, time.Now())
		},
	}
	cmd.Flags().StringVar(&f.format, "format", "csv", "output format: csv, xlsx or yaml")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&f.since, "since", "", "only offers at or after this time")
	cmd.Flags().StringVar(&f.interval, "interval", "", "interval name for the export header (default: All, or the --since value)")
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, name string, f exportFlags, now time.Time) error {
	format, err := export.ParseFormat(f.format)
	if err != nil {
		return userError("%s", err)
	}
	since, err := parseSince(f.since, now)
	if err != nil {
		return userError("--since: %s", err)
	}
	interval := f.interval
	if interval == "" {
		interval = "All"
		if f.since != "" {
			interval = f.since
		}
	}

	backend, err := a.attachBackend(false)
	if err != nil {
		return err
	}
	defer backend.Detach()

	if err := requireAccount(backend, name); err != nil {
		return err
	}
	trades := export.Trades{
		Account:  name,
		Interval: interval,
		Since:    since,
		Items:    backend.LoadAccount(name).Trades,
	}

	if f.out == "" || f.out == "-" {
		if err := export.Write(cmd.OutOrStdout(), format, trades); err != nil {
			return sysError("export: %s", err)
		}
		return nil
	}

	file, err := os.Create(f.out)
	if err != nil {
		return sysError("create output: %s", err)
	}
	if err := export.Write(file, format, trades); err != nil {
		_ = file.Close()
		return sysError("export: %s", err)
	}
	if err := file.Close(); err != nil {
		return sysError("close output: %s", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", f.out)
	return nil
}

// parseSince accepts "", a date, an RFC 3339 time, or a duration before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.UTC); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date, time or duration", s)
}
