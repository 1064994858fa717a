package snapshots

import (
	"time"

	"github.com/rs/zerolog"
)

// RetentionJob deletes snapshots older than the retention window.
type RetentionJob struct {
	repo      *Repository
	retention time.Duration
	log       zerolog.Logger
}

// NewRetentionJob creates a retention job. A non-positive retention keeps
// 90 days.
func NewRetentionJob(repo *Repository, retention time.Duration, log zerolog.Logger) *RetentionJob {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &RetentionJob{
		repo:      repo,
		retention: retention,
		log:       log.With().Str("job", "snapshot_retention").Logger(),
	}
}

// Run deletes expired snapshots.
func (j *RetentionJob) Run() error {
	deleted, err := j.repo.DeleteBefore(j.repo.now().Add(-j.retention))
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete old snapshots")
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Deleted old snapshots")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *RetentionJob) Name() string {
	return "snapshot_retention"
}
