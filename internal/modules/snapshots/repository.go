// Package snapshots persists portfolio summaries for later comparison.
package snapshots

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/exposure/internal/domain"
)

// ErrNotFound is returned by Get for an unknown snapshot ID.
var ErrNotFound = errors.New("snapshot not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Snapshot is a stored summary.
type Snapshot struct {
	ID        string                  `json:"id"`
	Source    string                  `json:"source"`
	CreatedAt time.Time               `json:"created_at"`
	Summary   domain.PortfolioSummary `json:"summary"`
}

// Info is the listing view of a snapshot, without the payload.
type Info struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
	NetExposure   float64   `json:"net_exposure"`
	EstimateValue float64   `json:"estimate_value"`
}

// Repository stores summaries as msgpack-encoded mappings in snapshots.db.
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a snapshot repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Save stores summary and returns the new snapshot ID.
func (r *Repository) Save(summary domain.PortfolioSummary, source string) (string, error) {
	payload, err := msgpack.Marshal(summary.ToMap())
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.Exec(`
		INSERT INTO summary_snapshots (id, source, created_at, net_exposure, estimate_value, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, source, r.now().UnixMilli(), summary.NetMarketExposure, summary.PortfolioEstimateValue, payload)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}

	r.log.Debug().Str("id", id).Str("source", source).Int("bytes", len(payload)).Msg("Saved snapshot")
	return id, nil
}

// Get loads a snapshot by ID.
func (r *Repository) Get(id string) (*Snapshot, error) {
	var (
		snap      Snapshot
		createdAt int64
		payload   []byte
	)
	err := r.db.QueryRow(`
		SELECT id, source, created_at, payload FROM summary_snapshots WHERE id = ?
	`, id).Scan(&snap.ID, &snap.Source, &createdAt, &payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	var m map[string]interface{}
	if err := msgpack.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	summary, err := domain.PortfolioSummaryFromMap(m)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild summary %s: %w", id, err)
	}

	snap.CreatedAt = time.UnixMilli(createdAt).UTC()
	snap.Summary = summary
	return &snap, nil
}

// List returns the newest snapshots first.
func (r *Repository) List(limit int) ([]Info, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(`
		SELECT id, source, created_at, net_exposure, estimate_value
		FROM summary_snapshots
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		var createdAt int64
		if err := rows.Scan(&info.ID, &info.Source, &createdAt, &info.NetExposure, &info.EstimateValue); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		info.CreatedAt = time.UnixMilli(createdAt).UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return infos, nil
}

// DeleteBefore removes snapshots created before cutoff and returns how many
// were deleted.
func (r *Repository) DeleteBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM summary_snapshots WHERE created_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
