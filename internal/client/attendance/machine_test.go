package attendance

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/client/store"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setup(t *testing.T) (*Machine, *store.Store, *clock) {
	t.Helper()
	c := &clock{t: t0}
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "garrison.db"), store.WithClock(c.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.CreatePerson(context.Background(), "Ana Soto", "12345678-5")
	require.NoError(t, err)
	return NewMachine(s, logging.NewNop()), s, c
}

func allRecords(t *testing.T, s *store.Store) []*models.AttendanceRecord {
	t.Helper()
	recs, err := s.LatestRecords(context.Background(), 1000)
	require.NoError(t, err)
	return recs
}

func TestToggle_CheckInThenCheckOut(t *testing.T) {
	m, s, c := setup(t)
	ctx := context.Background()

	tr, err := m.Toggle(ctx, "12.345.678-5")
	require.NoError(t, err)
	assert.Equal(t, Present, tr.State)
	assert.True(t, tr.Record.Open())
	assert.True(t, tr.Record.Dirty)
	assert.Equal(t, t0, tr.Record.CheckIn)

	c.Advance(90 * time.Minute)
	tr, err = m.Toggle(ctx, "123456785")
	require.NoError(t, err)
	assert.Equal(t, Absent, tr.State)
	require.NotNil(t, tr.Record.CheckOut)
	require.NotNil(t, tr.Record.DurationHours)
	assert.Equal(t, 1.5, *tr.Record.DurationHours)
	assert.Equal(t, t0.Add(90*time.Minute), tr.Record.LastModified)

	recs := allRecords(t, s)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Open())
}

func TestToggle_SameInstantClosesAfterCheckIn(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	_, err := m.Toggle(ctx, "12345678-5")
	require.NoError(t, err)
	tr, err := m.Toggle(ctx, "12345678-5")
	require.NoError(t, err)

	assert.Equal(t, t0.Add(time.Millisecond), *tr.Record.CheckOut)
	assert.Equal(t, 0.0, *tr.Record.DurationHours)
	assert.True(t, tr.Record.LastModified.After(tr.Record.CheckIn))
}

func TestToggle_Errors(t *testing.T) {
	m, s, _ := setup(t)
	ctx := context.Background()

	_, err := m.Toggle(ctx, "16789532-8")
	require.ErrorIs(t, err, common.ErrUnknownPerson)

	_, err = m.Toggle(ctx, "abc")
	require.ErrorIs(t, err, common.ErrInvalidFormat)

	assert.Empty(t, allRecords(t, s))
}

func TestToggle_TombstonedPersonIsUnknown(t *testing.T) {
	m, s, _ := setup(t)
	ctx := context.Background()

	p, err := s.FindPersonByNationalID(ctx, "12345678-5")
	require.NoError(t, err)
	_, err = s.DeletePerson(ctx, p.GlobalID)
	require.NoError(t, err)

	_, err = m.Toggle(ctx, "12345678-5")
	require.ErrorIs(t, err, common.ErrUnknownPerson)
}

func TestToggle_ConcurrentNeverOpensTwoSessions(t *testing.T) {
	m, s, c := setup(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_, err := m.Toggle(ctx, "12345678-5")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	recs := allRecords(t, s)
	require.Len(t, recs, n/2)
	for _, r := range recs {
		assert.False(t, r.Open())
	}

	state, err := m.State(ctx, "12345678-5")
	require.NoError(t, err)
	assert.Equal(t, Absent, state)
}

func TestState(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	state, err := m.State(ctx, "12345678-5")
	require.NoError(t, err)
	assert.Equal(t, Absent, state)

	_, err = m.Toggle(ctx, "12345678-5")
	require.NoError(t, err)

	state, err = m.State(ctx, "12345678-5")
	require.NoError(t, err)
	assert.Equal(t, Present, state)

	_, err = m.State(ctx, "16789532-8")
	require.ErrorIs(t, err, common.ErrUnknownPerson)
}
