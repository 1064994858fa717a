package clientdata

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/exposure/internal/database"
	testingpkg "github.com/aristath/exposure/internal/testing"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, database.NameClientData)
	t.Cleanup(cleanup)
	return db.Conn()
}

func TestNewRepository(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	assert.NotNil(t, repo)
}

func TestStore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	data := map[string]interface{}{"close": 151.25, "date": "2025-03-14"}
	require.NoError(t, repo.Store(TableLatestClose, "AAPL", data, time.Hour))

	var stored string
	var expiresAt int64
	err := db.QueryRow("SELECT data, expires_at FROM latest_close WHERE symbol = ?", "AAPL").Scan(&stored, &expiresAt)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stored), &decoded))
	assert.Equal(t, 151.25, decoded["close"])

	expected := time.Now().Add(time.Hour).Unix()
	assert.InDelta(t, expected, expiresAt, 5)
}

func TestStoreUpsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableBetas, "MSFT", map[string]float64{"beta": 1.1}, time.Hour))
	require.NoError(t, repo.Store(TableBetas, "MSFT", map[string]float64{"beta": 0.9}, time.Hour))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM betas").Scan(&count))
	assert.Equal(t, 1, count)

	data, err := repo.Get(TableBetas, "MSFT")
	require.NoError(t, err)
	assert.JSONEq(t, `{"beta":0.9}`, string(data))
}

func TestGetIfFresh(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store(TableLatestClose, "FRESH", map[string]float64{"close": 1}, time.Hour))
	require.NoError(t, repo.Store(TableLatestClose, "STALE", map[string]float64{"close": 2}, -time.Hour))

	tests := []struct {
		name  string
		key   string
		found bool
	}{
		{"fresh entry", "FRESH", true},
		{"expired entry", "STALE", false},
		{"missing entry", "NONE", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := repo.GetIfFresh(TableLatestClose, tt.key)
			require.NoError(t, err)
			if tt.found {
				assert.NotNil(t, data)
			} else {
				assert.Nil(t, data)
			}
		})
	}
}

func TestGet_ReturnsStaleData(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	require.NoError(t, repo.Store(TableDailyCloses, "SPY", []float64{500, 501}, -time.Hour))

	data, err := repo.Get(TableDailyCloses, "SPY")
	require.NoError(t, err)
	assert.JSONEq(t, `[500,501]`, string(data))

	data, err = repo.Get(TableDailyCloses, "QQQ")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDelete(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	require.NoError(t, repo.Store(TableBetas, "AAPL", 1.2, time.Hour))

	require.NoError(t, repo.Delete(TableBetas, "AAPL"))
	require.NoError(t, repo.Delete(TableBetas, "AAPL"), "deleting a missing key is not an error")

	data, err := repo.Get(TableBetas, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDeleteExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	require.NoError(t, repo.Store(TableLatestClose, "OLD1", 1.0, -time.Hour))
	require.NoError(t, repo.Store(TableLatestClose, "OLD2", 1.0, -time.Minute))
	require.NoError(t, repo.Store(TableLatestClose, "NEW", 1.0, time.Hour))

	deleted, err := repo.DeleteExpired(TableLatestClose)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = repo.DeleteExpired(TableLatestClose)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestDeleteAllExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	for _, table := range AllTables {
		require.NoError(t, repo.Store(table, "OLD", 1.0, -time.Hour))
		require.NoError(t, repo.Store(table, "NEW", 1.0, time.Hour))
	}

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)
	require.Len(t, results, len(AllTables))
	for _, table := range AllTables {
		assert.Equal(t, int64(1), results[table], table)
	}
}

func TestInvalidTableName(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	tests := []struct {
		name string
		call func() error
	}{
		{"store", func() error { return repo.Store("exchangerate", "k", 1, time.Hour) }},
		{"get", func() error { _, err := repo.Get("positions; DROP TABLE betas", "k"); return err }},
		{"get if fresh", func() error { _, err := repo.GetIfFresh("", "k"); return err }},
		{"delete", func() error { return repo.Delete("unknown", "k") }},
		{"delete expired", func() error { _, err := repo.DeleteExpired("unknown"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid table name")
		})
	}
}

func TestStore_UnmarshalableData(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	err := repo.Store(TableBetas, "AAPL", make(chan int), time.Hour)
	assert.Error(t, err)
}
