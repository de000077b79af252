package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// evaluated builds a snapshot scored the way the receiver would.
func evaluated(id string, retention float64) *wire.Snapshot {
	in := finhealth.Input{
		GivingTrend:     finhealth.GivingTrend{Direction: finhealth.DirectionDown, PercentageChange: -12, ComparisonPeriodLabel: "vs last month"},
		DonorRetention:  finhealth.DonorRetention{Rate: retention, TotalDonors: 100, RetainedDonors: int(retention), LostDonors: 100 - int(retention)},
		RecurringGiving: finhealth.RecurringGiving{Percentage: 20, RecurringDonors: 20, TotalDonors: 100},
		NewDonorGrowth:  finhealth.NewDonorGrowth{Rate: 5, NewDonorsThisPeriod: 21, NewDonorsLastPeriod: 20},
	}
	snap := &wire.Snapshot{SourceID: id, PeriodID: "2026-09", Input: &in}
	snap.Apply(finhealth.Evaluate(in))
	return snap
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := openTest(t)
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='assessment'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "assessment", name)

	err = s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name='idx_assessment_source_time'`).Scan(&name)
	require.NoError(t, err)
}

func TestOpen_FileDatabaseReopens(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/history.db"

	s, err := Open(ctx, path, 0)
	require.NoError(t, err)
	_, err = s.Record(ctx, evaluated("north", 40))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, 0)
	require.NoError(t, err)
	defer s.Close()
	recs, err := s.List(ctx, "north", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRecord_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	s.now = func() time.Time { return time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC) }

	snap := evaluated("north", 35)
	rec, err := s.Record(ctx, snap)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	got, err := s.List(ctx, "north", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	assert.Equal(t, rec.ID, r.ID)
	assert.Equal(t, "2026-09", r.PeriodID)
	assert.Equal(t, snap.Score, r.Score)
	assert.Equal(t, snap.Label, r.Label)
	assert.Equal(t, snap.SubScores, r.SubScores)
	assert.Equal(t, *snap.Input, r.Input)
	assert.Equal(t, snap.Recommendations, r.Recommendations)
	assert.True(t, r.RecordedAt.Equal(s.now()))
}

func TestRecord_RejectsUnevaluated(t *testing.T) {
	s := openTest(t)
	_, err := s.Record(context.Background(), &wire.Snapshot{SourceID: "x"})
	assert.ErrorIs(t, err, ErrNotEvaluated)
}

func TestList_NewestFirstAndLimited(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		s.now = func() time.Time { return at }
		_, err := s.Record(ctx, evaluated("north", float64(10*(i+1))))
		require.NoError(t, err)
	}
	_, err := s.Record(ctx, evaluated("south", 50))
	require.NoError(t, err)

	got, err := s.List(ctx, "north", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 50.0, got[0].Input.DonorRetention.Rate)
	assert.Equal(t, 30.0, got[2].Input.DonorRetention.Rate)
	for _, r := range got {
		assert.Equal(t, "north", r.SourceID)
	}
}

func TestList_UnknownSourceIsEmpty(t *testing.T) {
	got, err := openTest(t).List(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		s.now = func() time.Time { return at }
		_, err := s.Record(ctx, evaluated("north", 40))
		require.NoError(t, err)
	}

	n, err := s.Prune(ctx, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.List(ctx, "north", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRun_PrunesOnStartAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := openTest(t)
	old := time.Now().Add(-72 * time.Hour)
	s.now = func() time.Time { return old }
	_, err := s.Record(ctx, evaluated("north", 40))
	require.NoError(t, err)
	s.now = time.Now

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := s.List(context.Background(), "north", 0)
		return err == nil && len(got) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestObserve(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	s.Observe(ctx, &wire.Snapshot{SourceID: "north", ErrorMessage: "timeout"})
	s.Observe(ctx, evaluated("north", 60))

	got, err := s.List(ctx, "north", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecord_UniqueIDs(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	ids := map[string]bool{}
	for i := 0; i < 20; i++ {
		rec, err := s.Record(ctx, evaluated(fmt.Sprintf("src-%d", i%3), 40))
		require.NoError(t, err)
		assert.False(t, ids[rec.ID])
		ids[rec.ID] = true
	}
}
