package cmd

import (
	"fmt"
	"os"

	"results-backup/internal/backup"
	apperrors "results-backup/internal/errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or inspect the configuration",
		Long: `Generate a commented configuration file, or print the configuration that
results after files, environment variables and flags are applied.

Environment variables:
  BACKUP_DIR, BACKUP_FILE_PREFIX, BACKUP_INTERVAL, BACKUP_MAX_BACKUPS,
  BACKUP_EXPORT_COMPRESSION and BACKUP_EXPORT_LEVEL override the file.
  RESULTS_BACKUP_<FLAG> (for example RESULTS_BACKUP_MAX_BACKUPS) sets any
  global flag.`,
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(o))

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default configuration file",
		Long: `Write a configuration file holding every option with its default value.

Examples:
  # Print the template
  results-backup config init --path -

  # Create results-backup.yaml in the current directory
  results-backup config init`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := backup.GenerateDefaultConfigYAML()
			if path == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					err := fmt.Errorf("%s already exists, use --force to overwrite it", path)
					return apperrors.NewAppError(apperrors.ErrorTypeValidation, err.Error(), err)
				}
			}

			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", defaultConfigFile, "file to write (\"-\" for stdout)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func newConfigShowCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := o.loadConfig()
			if err != nil {
				return err
			}

			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err := encoder.Encode(config); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
}
