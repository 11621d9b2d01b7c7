package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"results-backup/internal/backup"
	"results-backup/internal/display"
	apperrors "results-backup/internal/errors"
	"results-backup/internal/feed"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// latestBackup selects the newest backup wherever a backup path is expected.
const latestBackup = "latest"

func newBackupCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage result backups",
		Long: `Create, list, restore, export and prune result backups.

Backups live in the configured directory as <prefix>_<YYYYMMDD>_<HHMMSS>.json
files. Commands that take a backup accept a path, a file name inside the
backup directory, or "latest".

Examples:
  # Create a backup from a results file
  results-backup backup create --from results.json

  # List backups
  results-backup backup list

  # Restore the newest backup to stdout
  results-backup backup restore latest

  # Export a backup as zstd
  results-backup backup export latest --destination /mnt/archive --compression zstd

  # Show what retention would delete
  results-backup backup cleanup --dry-run`,
	}

	cmd.AddCommand(newBackupCreateCommand(o))
	cmd.AddCommand(newBackupListCommand(o))
	cmd.AddCommand(newBackupRestoreCommand(o))
	cmd.AddCommand(newBackupExportCommand(o))
	cmd.AddCommand(newBackupCleanupCommand(o))

	return cmd
}

func newBackupCreateCommand(o *rootOptions) *cobra.Command {
	var (
		from      string
		noCleanup bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a backup of a results file now",
		Long: `Write a backup of a JSON results file immediately.

The file must hold a single JSON object. Use "-" to read it from stdin.
Retention is applied afterwards unless --no-cleanup is given. Transient
storage failures are retried.

Examples:
  results-backup backup create --from results.json
  cat results.json | results-backup backup create --from -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runBackupCreate(cmd, from, noCleanup)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "JSON results file to back up (\"-\" for stdin)")
	cmd.Flags().BoolVar(&noCleanup, "no-cleanup", false, "skip the retention pass")
	cobra.CheckErr(cmd.MarkFlagRequired("from"))

	return cmd
}

func (o *rootOptions) runBackupCreate(cmd *cobra.Command, from string, noCleanup bool) error {
	snapshot, err := readResults(cmd.InOrStdin(), from)
	if err != nil {
		return err
	}

	config, err := o.loadConfig()
	if err != nil {
		return err
	}

	scheduler, closeLogger, err := o.newScheduler(config, nil)
	if err != nil {
		return err
	}
	defer closeLogger()

	scheduler.UpdateResults(snapshot)

	ctx := cmd.Context()
	var path string
	err = apperrors.NewDefaultRetryHandler().Retry(ctx, func() error {
		var err error
		path, err = scheduler.ForceBackup(ctx)
		return err
	})
	if err != nil {
		return err
	}

	printer := o.printer(cmd.OutOrStdout())
	printer.Success("Backup written to %s", path)

	if noCleanup {
		return nil
	}

	result, err := scheduler.Cleanup(ctx)
	if err != nil {
		return err
	}
	printer.Cleanup(result, false)
	return nil
}

func readResults(stdin io.Reader, from string) (backup.Snapshot, error) {
	if from != "-" {
		return feed.ReadSnapshot(from)
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read results from stdin: %w", err)
	}
	return feed.ParseSnapshot(data)
}

func newBackupListCommand(o *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Long: `List the backups in the backup directory, newest first.

Examples:
  results-backup backup list
  results-backup backup list --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runBackupList(cmd, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format (table, json, yaml)")

	return cmd
}

func (o *rootOptions) runBackupList(cmd *cobra.Command, format string) error {
	outputFormat, err := display.ParseOutputFormat(format)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrorTypeValidation, err.Error(), err)
	}

	config, err := o.loadConfig()
	if err != nil {
		return err
	}

	scheduler, closeLogger, err := o.newScheduler(config, nil)
	if err != nil {
		return err
	}
	defer closeLogger()

	records, err := scheduler.GetBackups(cmd.Context())
	if err != nil {
		return err
	}

	return o.printer(cmd.OutOrStdout()).Backups(records, outputFormat)
}

func newBackupRestoreCommand(o *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "restore <backup>",
		Short: "Print or write the results stored in a backup",
		Long: `Load a backup and print its results as JSON, or write them to --output.

Compressed exports (.gz, .lz4, .zst) are decompressed on the fly.

Examples:
  results-backup backup restore latest
  results-backup backup restore results_backup_20240309_143000.json --output results.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runBackupRestore(cmd, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the results to this file instead of stdout")

	return cmd
}

func (o *rootOptions) runBackupRestore(cmd *cobra.Command, name, output string) error {
	config, err := o.loadConfig()
	if err != nil {
		return err
	}

	scheduler, closeLogger, err := o.newScheduler(config, nil)
	if err != nil {
		return err
	}
	defer closeLogger()

	ctx := cmd.Context()
	path, err := resolveBackup(ctx, scheduler, name)
	if err != nil {
		return err
	}

	snapshot, err := scheduler.RestoreBackup(ctx, path)
	if err != nil {
		return err
	}

	if output == "" {
		return display.NewPrinter(cmd.OutOrStdout(), nil).JSON(snapshot)
	}

	var buf bytes.Buffer
	if err := display.NewPrinter(&buf, nil).JSON(snapshot); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(output, buf.Bytes(), config.FileMode); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	o.printer(cmd.OutOrStdout()).Success("Restored %s to %s (%s)", filepath.Base(path), output, humanize.IBytes(uint64(buf.Len())))
	return nil
}

func newBackupExportCommand(o *rootOptions) *cobra.Command {
	var (
		destination string
		compression string
	)

	cmd := &cobra.Command{
		Use:   "export <backup>",
		Short: "Write a compressed copy of a backup",
		Long: `Write a copy of a backup to a destination file or directory.

The copy is compressed with --compression (default from the configuration)
and gets the matching extension: .gz, .lz4 or .zst.

Examples:
  results-backup backup export latest --destination /mnt/archive
  results-backup backup export latest --destination out/results.json --compression lz4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runBackupExport(cmd, args[0], destination, compression)
		},
	}

	cmd.Flags().StringVar(&destination, "destination", "", "export destination file or directory")
	cmd.Flags().StringVar(&compression, "compression", "", "compression type (none, gzip, lz4, zstd)")
	cobra.CheckErr(cmd.MarkFlagRequired("destination"))

	return cmd
}

func (o *rootOptions) runBackupExport(cmd *cobra.Command, name, destination, compression string) error {
	var compressionType backup.CompressionType
	if compression != "" {
		parsed, err := backup.ParseCompressionType(compression)
		if err != nil {
			return apperrors.NewAppError(apperrors.ErrorTypeValidation, err.Error(), err)
		}
		compressionType = parsed
	}

	config, err := o.loadConfig()
	if err != nil {
		return err
	}

	scheduler, closeLogger, err := o.newScheduler(config, nil)
	if err != nil {
		return err
	}
	defer closeLogger()

	ctx := cmd.Context()
	path, err := resolveBackup(ctx, scheduler, name)
	if err != nil {
		return err
	}

	result, err := scheduler.Export(ctx, path, destination, compressionType)
	if err != nil {
		return err
	}

	printer := o.printer(cmd.OutOrStdout())
	printer.Success("Exported %s to %s", filepath.Base(result.Source), result.Destination)
	if stats := result.Stats; stats != nil {
		printer.Info("%s: %s -> %s (%.1f%%)", result.Compression,
			humanize.IBytes(uint64(stats.OriginalSize)),
			humanize.IBytes(uint64(stats.CompressedSize)),
			stats.CompressionRatio*100)
	}
	return nil
}

func newBackupCleanupCommand(o *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete all but the newest --max-backups backups",
		Long: `Apply the retention policy now.

Examples:
  results-backup backup cleanup --dry-run
  results-backup backup cleanup --max-backups 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runBackupCleanup(cmd, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted")

	return cmd
}

func (o *rootOptions) runBackupCleanup(cmd *cobra.Command, dryRun bool) error {
	config, err := o.loadConfig()
	if err != nil {
		return err
	}

	scheduler, closeLogger, err := o.newScheduler(config, nil)
	if err != nil {
		return err
	}
	defer closeLogger()

	ctx := cmd.Context()
	printer := o.printer(cmd.OutOrStdout())

	if !dryRun {
		result, err := scheduler.Cleanup(ctx)
		if err != nil {
			return err
		}
		printer.Cleanup(result, false)
		return nil
	}

	plan, err := scheduler.PlanCleanup(ctx)
	if err != nil {
		return err
	}
	printer.Cleanup(plan, true)
	return nil
}

// resolveBackup turns a command line reference into a backup path. A name
// that does not exist as given is looked up in the backup directory.
func resolveBackup(ctx context.Context, scheduler *backup.Scheduler, name string) (string, error) {
	if name == latestBackup {
		records, err := scheduler.GetBackups(ctx)
		if err != nil {
			return "", err
		}
		if len(records) == 0 {
			cfg := scheduler.Config()
			return "", backup.NewNotFoundError("no backups found", nil).
				WithContext("path", cfg.BackupDir())
		}
		return records[0].Path, nil
	}

	if _, err := os.Stat(name); err == nil || filepath.IsAbs(name) {
		return name, nil
	}

	config := scheduler.Config()
	return filepath.Join(config.BackupDir(), name), nil
}
