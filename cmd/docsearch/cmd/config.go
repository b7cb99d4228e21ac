package cmd

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docsearch/internal/config"
	"github.com/Aman-CERP/docsearch/internal/errors"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the docsearch configuration",
		Long: `Manage docsearch.yaml.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. docsearch.yaml in the storage root, --config or $DOCSEARCH_CONFIG
  3. .env in the working directory (never overrides set variables)
  4. Environment variables (DOCSEARCH_*)`,
		Example: `  # Write the default configuration
  docsearch config init

  # Show the effective configuration
  docsearch config show --format json`,
	}

	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigPathCmd(a))

	return cmd
}

// initPath is where config init writes: --config, $DOCSEARCH_CONFIG, or
// the storage root.
func (a *app) initPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	cfg := config.NewConfig()
	if root := os.Getenv(config.EnvPrefix + "ROOT"); root != "" {
		cfg.Storage.Root = root
	}
	return cfg.Path()
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write the default configuration file",
		Annotations: map[string]string{skipSetup: "true"},
		Args:        cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			path := a.initPath()

			if _, err := os.Stat(path); err == nil {
				if !force {
					return errors.New(errors.ErrCodeConfigInvalid, "config file already exists", nil).
						WithDetail("path", path).
						WithSuggestion("Use --force to overwrite (a backup is kept)")
				}
			} else if !stderrors.Is(err, fs.ErrNotExist) {
				return err
			}

			backup, err := config.Backup(path)
			if err != nil {
				return err
			}

			cfg := config.NewConfig()
			if root := os.Getenv(config.EnvPrefix + "ROOT"); root != "" {
				cfg.Storage.Root = root
			}
			if err := cfg.WriteYAML(path); err != nil {
				return err
			}

			if a.out.JSONMode() {
				return a.out.JSON(map[string]string{"path": path, "backup": backup})
			}
			if backup != "" {
				a.out.Statusf("💾", "Previous config saved to %s", backup)
			}
			a.out.Successf("Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if a.out.JSONMode() {
				return a.out.JSON(a.cfg)
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = a.out.Out().Write(data)
			return err
		},
	}
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file path",
		Annotations: map[string]string{skipSetup: "true"},
		Args:        cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintln(a.out.Out(), a.initPath())
			return err
		},
	}
}
