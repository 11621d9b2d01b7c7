package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// RetentionPolicy lists the backups in the backup directory and keeps only
// the newest MaxBackups of them.
type RetentionPolicy struct {
	config  *Config
	dir     string
	logger  *BackupLogger
	metrics *Metrics

	// remove is os.Remove outside of tests.
	remove func(name string) error
}

// NewRetentionPolicy creates a retention policy for the configured directory
func NewRetentionPolicy(config *Config, logger *BackupLogger, metrics *Metrics) *RetentionPolicy {
	if logger == nil {
		logger = defaultBackupLogger()
	}

	return &RetentionPolicy{
		config:  config,
		dir:     config.BackupDir(),
		logger:  logger,
		metrics: metrics,
		remove:  os.Remove,
	}
}

// ListBackups returns every backup file, newest first. Ties in creation time
// are broken by file name, which embeds the timestamp and sequence.
func (rp *RetentionPolicy) ListBackups(ctx context.Context) ([]BackupRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(rp.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupRecord{}, nil
		}
		return nil, newFileError("failed to read backup directory", rp.dir, err)
	}

	records := make([]BackupRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !rp.isBackupName(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// removed between readdir and stat
			if os.IsNotExist(err) {
				continue
			}
			return nil, newFileError("failed to stat backup", filepath.Join(rp.dir, entry.Name()), err)
		}

		records = append(records, *recordFromInfo(filepath.Join(rp.dir, entry.Name()), info))
	}

	sortNewestFirst(records)
	return records, nil
}

// Plan reports what the next cleanup pass would keep and delete, from a
// single listing of the directory. Nothing is removed.
func (rp *RetentionPolicy) Plan(ctx context.Context) (*CleanupResult, error) {
	records, err := rp.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	toKeep, toDelete := rp.split(records)
	return &CleanupResult{Retained: toKeep, Deleted: toDelete}, nil
}

// Cleanup deletes every backup beyond the newest MaxBackups. A failed delete
// is logged and recorded, and the pass carries on with the remaining files.
func (rp *RetentionPolicy) Cleanup(ctx context.Context) (result *CleanupResult, err error) {
	finish := rp.logger.LogRetentionCleanup(ctx, rp.dir, rp.config.Retention.MaxBackups)
	defer func() { finish(err, result) }()

	records, err := rp.ListBackups(ctx)
	if err != nil {
		return nil, err
	}

	toKeep, toDelete := rp.split(records)
	result = &CleanupResult{
		Retained: toKeep,
		Deleted:  make([]BackupRecord, 0, len(toDelete)),
	}

	for _, record := range toDelete {
		removeErr := rp.remove(record.Path)
		if removeErr != nil && os.IsNotExist(removeErr) {
			removeErr = nil
		}
		rp.logger.Logger().LogFileRemoval(record.Path, "retention", removeErr)

		if removeErr != nil {
			result.Failed = append(result.Failed, CleanupError{Record: record, Error: removeErr.Error()})
			rp.metrics.RetentionDeleted(false)
			continue
		}
		result.Deleted = append(result.Deleted, record)
		rp.metrics.RetentionDeleted(true)
	}

	rp.metrics.SetRetained(len(toKeep) + len(result.Failed))

	if len(result.Failed) > 0 {
		rp.logger.Logger().Warnf("Retention cleanup could not delete %d of %d backups", len(result.Failed), len(toDelete))
	} else if len(toDelete) > 0 {
		rp.logger.Logger().Info(fmt.Sprintf("Retention cleanup deleted %d backups, kept %d", len(result.Deleted), len(toKeep)))
	}

	return result, nil
}

func (rp *RetentionPolicy) split(records []BackupRecord) (keep, remove []BackupRecord) {
	limit := rp.config.Retention.MaxBackups
	if limit < 0 {
		limit = 0
	}
	if len(records) <= limit {
		return records, nil
	}
	return records[:limit], records[limit:]
}

func (rp *RetentionPolicy) isBackupName(name string) bool {
	return strings.HasPrefix(name, rp.config.FilePrefix+"_") && strings.HasSuffix(name, backupExtension)
}

var backupNamePattern = regexp.MustCompile(`_(\d{8}_\d{6})(?:_(\d+))?\.json$`)

// nameOrder splits a backup file name into its timestamp and sequence number.
func nameOrder(name string) (stamp string, seq int, ok bool) {
	m := backupNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", 0, false
		}
		seq = n
	}
	return m[1], seq, true
}

// newerName reports whether backup name a was written after b. Sequence
// numbers compare numerically, so _1000 is newer than _999.
func newerName(a, b string) bool {
	stampA, seqA, okA := nameOrder(a)
	stampB, seqB, okB := nameOrder(b)
	if okA && okB {
		if stampA != stampB {
			return stampA > stampB
		}
		if seqA != seqB {
			return seqA > seqB
		}
	}
	return a > b
}

func sortNewestFirst(records []BackupRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return newerName(records[i].Name, records[j].Name)
	})
}
