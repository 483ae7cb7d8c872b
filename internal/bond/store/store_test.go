package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/structpricer/internal/database"
	"github.com/quantfold/structpricer/internal/payoff"
)

func f64(v float64) *float64 { return &v }

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func testBond(id string) *Bond {
	return &Bond{
		ID:       id,
		Name:     "Test Note 2026",
		Currency: "EUR",
		Model:    "closedform",
		Schedule: ScheduleSpec{
			EffectiveDate:   "2024-01-15",
			TerminationDate: "2026-01-15",
			TenorLength:     6,
			TenorUnit:       "M",
			Rule:            "BACKWARD",
			InArrears:       true,
			DayCount:        "ACT/365F",
			Redemption:      true,
			CallDates:       []string{"2025-01-15"},
		},
		Payoffs: []payoff.Spec{
			{
				Type:        "range",
				Variables:   []string{"SX5E"},
				TriggerLow:  payoff.Levels{"": 0},
				TriggerHigh: payoff.Levels{"": 95},
				Strike:      payoff.Levels{"": 100},
				Amount:      f64(100),
			},
		},
	}
}

func TestBondRepositoryRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewBondRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, repo.Create(testBond("B-1")))

	got, err := repo.GetByID("B-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Note 2026", got.Name)
	assert.Equal(t, "BACKWARD", got.Schedule.Rule)
	assert.Equal(t, []string{"2025-01-15"}, got.Schedule.CallDates)
	require.Len(t, got.Payoffs, 1)
	assert.Equal(t, "range", got.Payoffs[0].Type)
	assert.Equal(t, payoff.Levels{"": 100}, got.Payoffs[0].Strike)
}

func TestBondRepositoryGetMissing(t *testing.T) {
	db := testDB(t)
	repo := NewBondRepository(db.Conn(), zerolog.Nop())

	_, err := repo.GetByID("nope")
	assert.Error(t, err)
}

func TestBondRepositoryList(t *testing.T) {
	db := testDB(t)
	repo := NewBondRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, repo.Create(testBond("B-1")))
	require.NoError(t, repo.Create(testBond("B-2")))

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFixingRepository(t *testing.T) {
	db := testDB(t)
	repo := NewFixingRepository(db.Conn(), zerolog.Nop())

	day := func(offset int) time.Time {
		return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	}
	require.NoError(t, repo.Upsert("SX5E", day(0), 100))
	require.NoError(t, repo.Upsert("SX5E", day(1), 101))
	require.NoError(t, repo.Upsert("SX5E", day(2), 99))
	require.NoError(t, repo.Upsert("FX:USD", day(2), 1.1))

	t.Run("latest", func(t *testing.T) {
		v, ok := repo.Latest("SX5E")
		require.True(t, ok)
		assert.Equal(t, 99.0, v)

		_, ok = repo.Latest("unknown")
		assert.False(t, ok)
	})

	t.Run("series is oldest first", func(t *testing.T) {
		s, err := repo.Series("SX5E", 2)
		require.NoError(t, err)
		assert.Equal(t, []float64{101, 99}, s)
	})

	t.Run("series for unknown name errors", func(t *testing.T) {
		_, err := repo.Series("unknown", 10)
		assert.Error(t, err)
	})

	t.Run("upsert replaces same-day value", func(t *testing.T) {
		require.NoError(t, repo.Upsert("SX5E", day(2), 98))
		v, ok := repo.Latest("SX5E")
		require.True(t, ok)
		assert.Equal(t, 98.0, v)
	})

	t.Run("names", func(t *testing.T) {
		names, err := repo.Names()
		require.NoError(t, err)
		assert.Equal(t, []string{"FX:USD", "SX5E"}, names)
	})
}
