package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/flipstore/internal/paths"
)

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	DataDir      string `yaml:"data_dir,omitempty"`
	DatabaseFile string `yaml:"database_file"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
}

func (a *app) newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize flipstore storage",
		Long: "Write config.yaml with the resolved data directory, then create the\n" +
			"database, apply migrations and convert any legacy documents.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.yaml")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, force bool) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError("resolve config dir: %s", err)
	}
	cfg, err := a.storeConfig(false)
	if err != nil {
		return sysError("%s", err)
	}

	path := filepath.Join(configDir, configFileExt)
	if err := writeConfig(path, configFile{
		DataDir:      cfg.DataDir,
		DatabaseFile: cfg.DatabaseFileName(),
		LogLevel:     a.config.GetString(cfgKeyLogLevel),
		LogFormat:    a.config.GetString(cfgKeyLogFormat),
	}, force); err != nil {
		return sysError("write config: %s", err)
	}

	backend, err := a.attachBackend(false)
	if err != nil {
		return err
	}
	defer backend.Detach()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config: %s\n", path)
	fmt.Fprintf(out, "Database: %s\n", backend.DatabasePath())
	if report := backend.LastConversion(); report != nil && len(report.Converted) > 0 {
		fmt.Fprintf(out, "Converted %d legacy document(s)\n", len(report.Converted))
	}
	fmt.Fprintln(out, "flipstore initialized successfully")
	return nil
}

// writeConfig writes cfg to path. An existing file written by the user is
// kept unless force is set; the commented default from first run is
// replaced.
func writeConfig(path string, cfg configFile, force bool) error {
	if !force {
		existing, err := os.ReadFile(path)
		if err == nil && string(existing) != defaultConfigYAML {
			return nil
		}
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
