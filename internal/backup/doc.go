// Package backup keeps a bounded, crash-safe history of analysis results on disk.
//
// Producers push the latest results into a Scheduler at any time. The scheduler
// snapshots them on a fixed interval, writing each snapshot as an indented JSON
// file in the backup directory, and then removes everything but the newest
// configured number of backups.
//
// Core Components:
//
// - ResultStore: holds the current snapshot and hands out deep copies
// - SnapshotWriter: writes a snapshot to a temporary file and renames it into place
// - RetentionPolicy: lists backups newest first and deletes the surplus
// - RestoreLoader: reads a backup (or a compressed export) back into a snapshot
// - Scheduler: runs the periodic loop and exposes the collaborator API
// - Exporter: writes gzip, lz4 or zstd copies of a backup
//
// Example usage:
//
//	config := backup.DefaultConfig()
//	config.Directory = "/var/lib/results/backups"
//
//	scheduler, err := backup.NewScheduler(config, clock.WallClock, nil, nil)
//	if err != nil {
//		return err
//	}
//
//	scheduler.UpdateResults(backup.Snapshot{"documents": 12})
//	return scheduler.Run(ctx, func(ctx context.Context) error {
//		<-ctx.Done()
//		return nil
//	})
package backup
