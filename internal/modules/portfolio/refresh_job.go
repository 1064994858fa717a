package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/domain"
)

// SnapshotSaver persists a summary and returns its id.
type SnapshotSaver interface {
	Save(summary domain.PortfolioSummary, source string) (string, error)
}

// PriceRefreshJob refreshes the loaded portfolio's prices and records a
// snapshot of the resulting summary.
type PriceRefreshJob struct {
	store     *Store
	snapshots SnapshotSaver
	timeout   time.Duration
	log       zerolog.Logger
}

// NewPriceRefreshJob creates the job. snapshots may be nil.
func NewPriceRefreshJob(store *Store, snapshots SnapshotSaver, timeout time.Duration, log zerolog.Logger) *PriceRefreshJob {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &PriceRefreshJob{
		store:     store,
		snapshots: snapshots,
		timeout:   timeout,
		log:       log.With().Str("job", "price_refresh").Logger(),
	}
}

// Run refreshes prices. With nothing loaded it is a no-op.
func (j *PriceRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.store.Refresh(ctx)
	if errors.Is(err, ErrNotLoaded) {
		j.log.Debug().Msg("No portfolio loaded, skipping refresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to refresh prices: %w", err)
	}

	if j.snapshots == nil {
		return nil
	}
	id, err := j.snapshots.Save(report.Summary, j.Name())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	j.log.Info().
		Str("snapshot_id", id).
		Float64("net_exposure", report.Summary.NetMarketExposure).
		Msg("Saved refreshed summary")
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}
