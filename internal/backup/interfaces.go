package backup

import (
	"context"
)

// Service is the surface the backup manager offers to its host process.
type Service interface {
	// UpdateResults replaces the snapshot that the next backup will persist
	UpdateResults(snapshot Snapshot)

	// Start launches the periodic backup loop
	Start()

	// Stop stops the loop and waits for it to exit
	Stop()

	// ForceBackup writes a backup now and returns its path
	ForceBackup(ctx context.Context) (string, error)

	// GetBackups lists persisted backups, newest first
	GetBackups(ctx context.Context) ([]BackupRecord, error)

	// RestoreBackup loads the snapshot stored at path
	RestoreBackup(ctx context.Context, path string) (Snapshot, error)

	// Cleanup applies the retention policy immediately
	Cleanup(ctx context.Context) (*CleanupResult, error)
}

var _ Service = (*Scheduler)(nil)
