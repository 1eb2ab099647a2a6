package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ArchiveRotationJob deletes expired run archives
type ArchiveRotationJob struct {
	archiver      *RunArchiver
	retentionDays int
	keep          int
	log           zerolog.Logger
}

// NewArchiveRotationJob creates a rotation job. The newest keep archives are
// never deleted.
func NewArchiveRotationJob(archiver *RunArchiver, retentionDays, keep int, log zerolog.Logger) *ArchiveRotationJob {
	return &ArchiveRotationJob{
		archiver:      archiver,
		retentionDays: retentionDays,
		keep:          keep,
		log:           log.With().Str("job", "archive_rotation").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *ArchiveRotationJob) Name() string {
	return "archive_rotation"
}

// Run executes the rotation
func (j *ArchiveRotationJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	startTime := time.Now()
	deleted, err := j.archiver.RotateOldArchives(ctx, j.retentionDays, j.keep)
	if err != nil {
		return fmt.Errorf("archive rotation failed: %w", err)
	}

	j.log.Info().
		Int("deleted", deleted).
		Int("retention_days", j.retentionDays).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Archive rotation completed")
	return nil
}
