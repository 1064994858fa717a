// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/clientdata"
	"github.com/aristath/exposure/internal/config"
	"github.com/aristath/exposure/internal/modules/portfolio"
	"github.com/aristath/exposure/internal/modules/snapshots"
	"github.com/aristath/exposure/internal/scheduler"
)

// RegisterJobs creates the background jobs and schedules them.
// Returns JobInstances for manual triggering via API
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.Scheduler == nil {
		return nil, fmt.Errorf("scheduler not initialized")
	}

	instances := &JobInstances{
		PriceRefresh: portfolio.NewPriceRefreshJob(
			container.PortfolioStore,
			container.SnapshotRepo,
			2*time.Minute,
			log,
		),
		ClientDataCleanup:   clientdata.NewCleanupJob(container.ClientDataRepo, log),
		CheckDatabases:      scheduler.NewCheckDatabasesJob(log, container.ClientDataDB, container.SnapshotsDB),
		CheckWALCheckpoints: scheduler.NewCheckWALCheckpointsJob(log, container.ClientDataDB, container.SnapshotsDB),
		SnapshotRetention: snapshots.NewRetentionJob(
			container.SnapshotRepo,
			time.Duration(cfg.SnapshotRetentionDays)*24*time.Hour,
			log,
		),
	}

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedules.PriceRefresh, instances.PriceRefresh},
		{cfg.Schedules.CacheCleanup, instances.ClientDataCleanup},
		{cfg.Schedules.DatabaseCheck, instances.CheckDatabases},
		{cfg.Schedules.DatabaseCheck, instances.CheckWALCheckpoints},
		{cfg.Schedules.SnapshotRetention, instances.SnapshotRetention},
	}
	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, err
		}
	}

	log.Info().Int("scheduled", container.Scheduler.Entries()).Msg("Jobs registered")
	return instances, nil
}
