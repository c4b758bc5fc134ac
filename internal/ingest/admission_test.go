package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoard/internal/models"
)

const mib = int64(1 << 20)

func testAdmission(threshold int) AdmissionConfig {
	return AdmissionConfig{
		DailyThreshold:     threshold,
		BoundaryHour:       22,
		SmallFileThreshold: mib,
		DenseDirThreshold:  5,
	}
}

func TestQuotaBoundary(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before hour", time.Date(2024, 3, 15, 21, 59, 59, 0, loc), time.Date(2024, 3, 14, 22, 0, 0, 0, loc)},
		{"at hour", time.Date(2024, 3, 15, 22, 0, 0, 0, loc), time.Date(2024, 3, 15, 22, 0, 0, 0, loc)},
		{"after hour", time.Date(2024, 3, 15, 23, 30, 0, 0, loc), time.Date(2024, 3, 15, 22, 0, 0, 0, loc)},
		{"month start", time.Date(2024, 3, 1, 8, 0, 0, 0, loc), time.Date(2024, 2, 29, 22, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuotaBoundary(tt.now, 22)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestControllerCountsWindowUsage(t *testing.T) {
	st := testStore(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.Local)
	boundary := QuotaBoundary(now, 22)

	insertRecord(t, st, "small-new", models.LevelNew, 100, boundary.Add(time.Hour))
	insertRecord(t, st, "at-boundary", models.LevelTrashed, 100, boundary)
	insertRecord(t, st, "exactly-small", models.LevelApproved, mib, boundary.Add(2*time.Hour))
	insertRecord(t, st, "deleted", models.LevelDeleted, 100, boundary.Add(time.Hour))
	insertRecord(t, st, "large", models.LevelNew, mib+1, boundary.Add(time.Hour))
	insertRecord(t, st, "yesterday", models.LevelNew, 100, boundary.Add(-time.Second))

	c, err := NewController(context.Background(), st, testAdmission(5), now)
	require.NoError(t, err)
	assert.True(t, c.Boundary().Equal(boundary))
	assert.EqualValues(t, 3, c.Used())
	assert.Equal(t, 2, c.Remaining())
}

func TestControllerOverQuotaIsNegative(t *testing.T) {
	st := testStore(t)
	now := time.Date(2024, 3, 15, 23, 0, 0, 0, time.Local)
	insertRecord(t, st, "one", models.LevelNew, 100, now.Add(-time.Minute))
	insertRecord(t, st, "two", models.LevelNew, 100, now.Add(-time.Minute))

	c, err := NewController(context.Background(), st, testAdmission(1), now)
	require.NoError(t, err)
	assert.Equal(t, -1, c.Remaining())
	assert.Equal(t, Defer, c.Decide(100, 6, "busy"))
}

func TestControllerDecide(t *testing.T) {
	st := testStore(t)
	cfg := testAdmission(2)
	cfg.OverridePattern = "^keep/"

	c, err := NewController(context.Background(), st, cfg, time.Now())
	require.NoError(t, err)

	// Large files never consume quota.
	assert.Equal(t, AdmitLarge, c.Decide(mib+1, 100, "busy"))
	assert.Equal(t, 2, c.Remaining())

	assert.Equal(t, Admit, c.Decide(mib, 100, "busy"))
	assert.Equal(t, Admit, c.Decide(1, 100, "busy"))
	assert.Equal(t, 0, c.Remaining())

	assert.Equal(t, AdmitSparse, c.Decide(1, 5, "busy"))
	assert.Equal(t, Defer, c.Decide(1, 6, "busy"))
	assert.Equal(t, AdmitOverride, c.Decide(1, 6, "KEEP/cats"))
	assert.Equal(t, Defer, c.Decide(1, 6, "cats/keep"))
	assert.Equal(t, 0, c.Remaining())
}

func TestControllerRejectsBadOverride(t *testing.T) {
	cfg := testAdmission(1)
	cfg.OverridePattern = "("
	_, err := NewController(context.Background(), testStore(t), cfg, time.Now())
	assert.Error(t, err)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "admit-sparse", AdmitSparse.String())
	assert.Equal(t, "defer", Defer.String())
	assert.False(t, Defer.Admitted())
	assert.True(t, AdmitOverride.Admitted())
	assert.Equal(t, "decision(42)", Decision(42).String())
}
