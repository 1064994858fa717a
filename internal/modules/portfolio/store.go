package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/internal/modules/validation"
)

// ErrNotLoaded is returned by operations that need a loaded portfolio.
var ErrNotLoaded = errors.New("no portfolio loaded")

// State is a consistent view of the loaded portfolio.
type State struct {
	Groups               []domain.PortfolioGroup `json:"groups"`
	CashLike             []domain.StockPosition  `json:"cash_like"`
	PendingActivityValue float64                 `json:"pending_activity_value"`
	Summary              domain.PortfolioSummary `json:"summary"`
	Skipped              []SkippedRow            `json:"skipped"`
	LoadedAt             time.Time               `json:"loaded_at"`
	RefreshedAt          time.Time               `json:"refreshed_at,omitempty"`
}

// RefreshReport is the outcome of a price refresh.
type RefreshReport struct {
	Summary domain.PortfolioSummary `json:"summary"`
	Prices  []PriceResolution       `json:"prices"`
}

// Store holds the current portfolio. Load and Refresh are serialized: each
// owns the state from the moment it reads it until it publishes the result.
// Readers never block on a running load or refresh.
type Store struct {
	service *Service

	opMu sync.Mutex

	mu     sync.RWMutex
	state  *State
	subs   map[int]chan domain.PortfolioSummary
	nextID int

	log zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(service *Service, log zerolog.Logger) *Store {
	return &Store{
		service: service,
		subs:    make(map[int]chan domain.PortfolioSummary),
		log:     log.With().Str("component", "portfolio_store").Logger(),
	}
}

// Load assembles rows and replaces the current portfolio. On error the
// previous portfolio is kept.
func (st *Store) Load(ctx context.Context, rows []validation.Row) (*Result, error) {
	st.opMu.Lock()
	defer st.opMu.Unlock()

	result, err := st.service.ProcessPortfolio(ctx, rows)
	if err != nil {
		return nil, err
	}

	next := &State{
		Groups:               result.Groups,
		CashLike:             result.CashLike,
		PendingActivityValue: result.PendingActivityValue,
		Summary:              result.Summary,
		Skipped:              result.Skipped,
		LoadedAt:             st.service.cfg.Now(),
	}
	st.replace(next)
	return result, nil
}

// Refresh fetches the latest closes for every loaded group and recomputes
// the summary.
func (st *Store) Refresh(ctx context.Context) (*RefreshReport, error) {
	st.opMu.Lock()
	defer st.opMu.Unlock()

	current, ok := st.State()
	if !ok {
		return nil, ErrNotLoaded
	}

	groups, prices := st.service.RefreshPrices(ctx, current.Groups)
	summary, err := st.service.Summarize(groups, current.CashLike, current.PendingActivityValue)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize refreshed portfolio: %w", err)
	}

	next := current
	next.Groups = groups
	next.Summary = summary
	next.RefreshedAt = st.service.cfg.Now()
	st.replace(&next)

	return &RefreshReport{Summary: summary, Prices: prices}, nil
}

// State returns a copy of the current portfolio and whether one is loaded.
func (st *Store) State() (State, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.state == nil {
		return State{}, false
	}
	s := *st.state
	s.Groups = make([]domain.PortfolioGroup, len(st.state.Groups))
	for i, g := range st.state.Groups {
		s.Groups[i] = g.Clone()
	}
	s.CashLike = append([]domain.StockPosition(nil), st.state.CashLike...)
	s.Skipped = append([]SkippedRow(nil), st.state.Skipped...)
	return s, true
}

// Summary returns the current summary.
func (st *Store) Summary() (domain.PortfolioSummary, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.state == nil {
		return domain.PortfolioSummary{}, false
	}
	return st.state.Summary, true
}

// Subscribe returns a channel receiving every new summary and a function
// that cancels the subscription. Slow subscribers miss updates rather than
// block publishers.
func (st *Store) Subscribe(buffer int) (<-chan domain.PortfolioSummary, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.PortfolioSummary, buffer)

	st.mu.Lock()
	id := st.nextID
	st.nextID++
	st.subs[id] = ch
	st.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			st.mu.Lock()
			delete(st.subs, id)
			st.mu.Unlock()
			close(ch)
		})
	}
}

func (st *Store) replace(next *State) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state = next
	for id, ch := range st.subs {
		select {
		case ch <- next.Summary:
		default:
			st.log.Debug().Int("subscriber", id).Msg("Subscriber lagging, update dropped")
		}
	}
}
