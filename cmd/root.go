package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"results-backup/internal/backup"
	"results-backup/internal/display"
	apperrors "results-backup/internal/errors"
	"results-backup/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "RESULTS_BACKUP"
	defaultConfigFile = "results-backup.yaml"
)

// rootOptions carries the global flags and everything built from them for
// the duration of one command execution.
type rootOptions struct {
	viper  *viper.Viper
	logger *logging.Logger
}

// NewRootCommand builds the complete command tree.
func NewRootCommand() *cobra.Command {
	o := &rootOptions{viper: viper.New()}

	root := &cobra.Command{
		Use:   "results-backup",
		Short: "Keep a rolling history of analysis results on disk",
		Long: `Results Backup periodically snapshots a JSON result set into timestamped
backup files, keeps only the newest ones and restores any of them on demand.

Every write goes to a temporary file first and is renamed into place, so a
crash never leaves a half-written backup behind.

Examples:
  # Back up results.json every five minutes, keeping the last ten backups
  results-backup run --results-file results.json

  # Custom directory, interval and retention
  results-backup run --results-file results.json --dir /var/lib/results/backups \
                     --interval 1m --max-backups 30

  # Write one backup right now
  results-backup backup create --from results.json

  # List backups as JSON
  results-backup backup list --format json

  # Restore the newest backup into a file
  results-backup backup restore latest --output results.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			o.close()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", defaultConfigFile, "config file")
	flags.String("dir", "", "backup directory (default \"./backups\")")
	flags.Duration("interval", 0, "time between scheduled backups (default 5m)")
	flags.Int("max-backups", 0, "number of backups to keep (default 10)")
	flags.String("log-level", "normal", "log level: quiet, normal, verbose, debug")
	flags.String("log-format", "text", "log format: text, json")
	flags.String("log-file", "", "also append logs to this file")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("theme", "default", "color theme: default, dark, plain")

	o.viper.SetEnvPrefix(envPrefix)
	o.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.viper.AutomaticEnv()
	cobra.CheckErr(o.viper.BindPFlags(flags))

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return apperrors.NewAppError(apperrors.ErrorTypeValidation, err.Error(), err)
	})

	root.AddCommand(newRunCommand(o))
	root.AddCommand(newBackupCommand(o))
	root.AddCommand(newConfigCommand(o))
	root.AddCommand(createVersionCommand())

	return root
}

// Execute runs the command tree and exits with a code derived from the
// error class. This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperrors.FormatUserError(err))
		os.Exit(apperrors.ExitCode(err))
	}
}

// initialize builds the logger shared by every subcommand.
func (o *rootOptions) initialize(cmd *cobra.Command) error {
	level, err := logging.ParseLogLevel(o.viper.GetString("log-level"))
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrorTypeValidation, err.Error(), err)
	}

	format := strings.ToLower(o.viper.GetString("log-format"))
	if format != "text" && format != "json" {
		err := fmt.Errorf("unknown log format %q (want text or json)", format)
		return apperrors.NewAppError(apperrors.ErrorTypeValidation, err.Error(), err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:   level,
		Output:  cmd.ErrOrStderr(),
		Format:  format,
		LogFile: o.viper.GetString("log-file"),
	})
	if err != nil {
		return err
	}

	o.logger = logger
	return nil
}

// close releases the log file opened by initialize.
func (o *rootOptions) close() {
	if o.logger == nil {
		return
	}
	if err := o.logger.Close(); err != nil {
		o.logger.WithField("error", err.Error()).Warn("Failed to close log file")
	}
}

// loadConfig resolves the backup configuration. Precedence, lowest first:
// defaults, the YAML file, BACKUP_* variables, RESULTS_BACKUP_* variables
// and flags.
func (o *rootOptions) loadConfig() (*backup.Config, error) {
	path := o.viper.GetString("config")
	if o.viper.IsSet("config") && path != defaultConfigFile {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config, err := backup.NewConfigLoader(path).LoadConfig()
	if err != nil {
		return nil, err
	}

	if o.viper.IsSet("dir") {
		config.Directory = o.viper.GetString("dir")
	}
	if o.viper.IsSet("interval") {
		config.Interval = o.viper.GetDuration("interval")
	}
	if o.viper.IsSet("max-backups") {
		config.Retention.MaxBackups = o.viper.GetInt("max-backups")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// newScheduler wires a scheduler for config. The returned function releases
// the audit log.
func (o *rootOptions) newScheduler(config *backup.Config, metrics *backup.Metrics) (*backup.Scheduler, func(), error) {
	backupLogger, err := backup.NewBackupLogger(backup.BackupLoggerConfig{
		Logger:         o.logger,
		EnableAuditLog: config.Audit.Enabled,
		AuditLogFile:   config.Audit.File,
	})
	if err != nil {
		return nil, nil, err
	}

	scheduler, err := backup.NewScheduler(config, nil, backupLogger, metrics)
	if err != nil {
		backupLogger.Close()
		return nil, nil, err
	}

	return scheduler, func() {
		if err := backupLogger.Close(); err != nil {
			o.logger.WithField("error", err.Error()).Warn("Failed to close audit log")
		}
	}, nil
}

// printer returns a printer writing to out in the selected theme.
func (o *rootOptions) printer(out io.Writer) *display.Printer {
	theme := display.GetThemeByName(o.viper.GetString("theme"))
	if o.viper.GetBool("no-color") {
		theme = display.PlainTextTheme()
	}
	return display.NewPrinter(out, display.NewColorSystem(theme, out))
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  "Print the version information for results-backup",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "results-backup version %s\n", version)
			fmt.Fprintf(out, "Built: %s\n", buildTime)
			fmt.Fprintf(out, "Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Go version: %s\n", goVersion)
		},
	}
}
