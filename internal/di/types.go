// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/exposure/internal/clientdata"
	"github.com/aristath/exposure/internal/clients/yahoo"
	"github.com/aristath/exposure/internal/database"
	"github.com/aristath/exposure/internal/metrics"
	"github.com/aristath/exposure/internal/modules/marketdata"
	"github.com/aristath/exposure/internal/modules/options"
	"github.com/aristath/exposure/internal/modules/portfolio"
	"github.com/aristath/exposure/internal/modules/simulator"
	"github.com/aristath/exposure/internal/modules/snapshots"
	"github.com/aristath/exposure/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire() and passed to the server.
type Container struct {
	// Databases
	ClientDataDB *database.DB // cached market data (closes, betas)
	SnapshotsDB  *database.DB // persisted summary snapshots

	// Repositories
	ClientDataRepo *clientdata.Repository
	SnapshotRepo   *snapshots.Repository

	// Clients
	ChartClient *yahoo.Client

	// Services
	Metrics           *metrics.Registry
	BetaService       *marketdata.BetaService
	VolatilityService *marketdata.VolatilityService
	Calculator        options.DeltaCalculator
	PortfolioService  *portfolio.Service
	PortfolioStore    *portfolio.Store
	Simulator         *simulator.Simulator
	Scheduler         *scheduler.Scheduler
}

// Close closes every database the container opened. Safe on a partially
// initialized container.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.ClientDataDB != nil {
		_ = c.ClientDataDB.Close()
	}
	if c.SnapshotsDB != nil {
		_ = c.SnapshotsDB.Close()
	}
}

// JobInstances holds the scheduled jobs for manual triggering via the API.
type JobInstances struct {
	PriceRefresh        scheduler.Job
	ClientDataCleanup   scheduler.Job
	CheckDatabases      scheduler.Job
	CheckWALCheckpoints scheduler.Job
	SnapshotRetention   scheduler.Job
}

// ByName indexes the jobs by their Name().
func (j *JobInstances) ByName() map[string]scheduler.Job {
	byName := make(map[string]scheduler.Job)
	if j == nil {
		return byName
	}
	for _, job := range []scheduler.Job{
		j.PriceRefresh,
		j.ClientDataCleanup,
		j.CheckDatabases,
		j.CheckWALCheckpoints,
		j.SnapshotRetention,
	} {
		if job != nil {
			byName[job.Name()] = job
		}
	}
	return byName
}
