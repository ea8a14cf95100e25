package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("gid-%d", n)
	}
}

func openStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: t0}
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "garrison.db"),
		WithClock(clock.Now), WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestOpen_UnwritablePath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "x.db"))
	require.ErrorIs(t, err, common.ErrMigration)
}

func TestCreatePerson(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	p, err := s.CreatePerson(ctx, "  Ana Soto ", "12.345.678-5")
	require.NoError(t, err)
	assert.Equal(t, "gid-1", p.GlobalID)
	assert.Equal(t, "Ana Soto", p.FullName)
	assert.Equal(t, "12345678-5", p.NationalID)
	assert.True(t, p.Dirty)
	assert.Equal(t, t0, p.LastModified)

	got, err := s.FindPersonByNationalID(ctx, "123456785")
	require.NoError(t, err)
	assert.Equal(t, p.GlobalID, got.GlobalID)
}

func TestCreatePerson_Errors(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	_, err := s.CreatePerson(ctx, "Ana", "12345678-5")
	require.NoError(t, err)

	tests := []struct {
		name, fullName, id string
		want               error
	}{
		{"malformed", "Luis", "12-3", common.ErrInvalidFormat},
		{"wrong digit", "Luis", "12345678-6", common.ErrInvalidFormat},
		{"duplicate", "Luis", "12.345.678-5", common.ErrDuplicateNationalID},
		{"empty name", "   ", "16789532-8", common.ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreatePerson(ctx, tt.fullName, tt.id)
			require.ErrorIs(t, err, tt.want)
		})
	}

	list, err := s.ListPersons(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreatePerson_DuplicateCheckedBeforeCheckDigit(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	_, err := s.UpsertFromRemote(ctx, models.ChangeEnvelope{
		Kind: models.EntityKindPerson, GlobalID: "remote", LastModified: t0,
		Person: &models.PersonData{FullName: "Legacy", NationalID: "12345678-6"},
	})
	require.NoError(t, err)

	_, err = s.CreatePerson(ctx, "Other", "12345678-6")
	require.ErrorIs(t, err, common.ErrDuplicateNationalID)
}

func TestFindPersonByNationalID_Unknown(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.FindPersonByNationalID(context.Background(), "16789532-8")
	require.ErrorIs(t, err, common.ErrUnknownPerson)
}

func TestRenamePerson_RestampsStrictly(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	p, err := s.CreatePerson(ctx, "Ana", "12345678-5")
	require.NoError(t, err)
	_, err = s.MarkSynced(ctx, []models.Ack{{Kind: models.EntityKindPerson, GlobalID: p.GlobalID, LastModified: p.LastModified}})
	require.NoError(t, err)

	renamed, err := s.RenamePerson(ctx, p.GlobalID, "Ana María")
	require.NoError(t, err)
	assert.Equal(t, "Ana María", renamed.FullName)
	assert.True(t, renamed.Dirty)
	assert.Equal(t, t0.Add(time.Millisecond), renamed.LastModified)

	_, err = s.RenamePerson(ctx, "missing", "x")
	require.ErrorIs(t, err, common.ErrUnknownPerson)
}

func TestDeletePerson_Tombstones(t *testing.T) {
	s, clock := openStore(t)
	ctx := context.Background()

	p, err := s.CreatePerson(ctx, "Ana", "12345678-5")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	deleted, err := s.DeletePerson(ctx, p.GlobalID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.True(t, deleted.Dirty)
	assert.Equal(t, t0.Add(time.Minute), deleted.LastModified)

	_, err = s.FindPersonByNationalID(ctx, "12345678-5")
	require.ErrorIs(t, err, common.ErrUnknownPerson)

	_, err = s.DeletePerson(ctx, p.GlobalID)
	require.ErrorIs(t, err, common.ErrUnknownPerson)

	again, err := s.CreatePerson(ctx, "Ana", "12345678-5")
	require.NoError(t, err)
	assert.NotEqual(t, p.GlobalID, again.GlobalID)
}

func TestMetadata(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	id1, err := s.DeviceID(ctx)
	require.NoError(t, err)
	id2, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id1)
	assert.Equal(t, id1, id2)

	tok, err := s.AuthToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
	require.NoError(t, s.SetAuthToken(ctx, "secret"))
	tok, err = s.AuthToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret", tok)
	require.NoError(t, s.ClearAuthToken(ctx))
	tok, err = s.AuthToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	last, err := s.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())
	require.NoError(t, s.SetLastSyncAt(ctx, t0))
	last, err = s.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(t0))

	cur, err := s.Cursor(ctx)
	require.NoError(t, err)
	assert.Zero(t, cur)
}

func TestUpdate_WrapsStorageFailures(t *testing.T) {
	s, _ := openStore(t)
	err := s.Update(context.Background(), func(ctx context.Context, r *Repos) error {
		return r.Persons.Insert(ctx, &models.Person{GlobalID: "g", FullName: "x", NationalID: "1"})
	})
	require.NoError(t, err)

	err = s.Update(context.Background(), func(ctx context.Context, r *Repos) error {
		return r.Persons.Insert(ctx, &models.Person{GlobalID: "g", FullName: "y", NationalID: "2"})
	})
	require.ErrorIs(t, err, common.ErrStorage)
}

func TestDeletePerson_ClosesOpenSession(t *testing.T) {
	s, clock := openStore(t)
	ctx := context.Background()

	p, err := s.CreatePerson(ctx, "Ana", "12345678-5")
	require.NoError(t, err)
	err = s.Update(ctx, func(ctx context.Context, r *Repos) error {
		return r.Attendance.Insert(ctx, &models.AttendanceRecord{
			GlobalID: "a1", PersonGlobalID: p.GlobalID, CheckIn: t0, LastModified: t0,
		})
	})
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)
	_, err = s.DeletePerson(ctx, p.GlobalID)
	require.NoError(t, err)

	var (
		rec     *models.AttendanceRecord
		openErr error
	)
	err = s.View(ctx, func(ctx context.Context, r *Repos) error {
		_, openErr = r.Attendance.GetOpenByPerson(ctx, p.GlobalID)
		var err error
		rec, err = r.Attendance.GetByGlobalID(ctx, "a1")
		return err
	})
	require.NoError(t, err)
	require.ErrorIs(t, openErr, common.ErrNotFound)
	require.NotNil(t, rec.CheckOut)
	assert.Equal(t, t0.Add(90*time.Minute), *rec.CheckOut)
	require.NotNil(t, rec.DurationHours)
	assert.Equal(t, 1.5, *rec.DurationHours)
	assert.True(t, rec.Dirty)
	assert.Equal(t, t0.Add(90*time.Minute), rec.LastModified)
}

func TestCloseSession_NeverBeforeCheckIn(t *testing.T) {
	rec := &models.AttendanceRecord{GlobalID: "a1", CheckIn: t0, LastModified: t0}
	CloseSession(rec, t0.Add(-time.Second))

	require.NotNil(t, rec.CheckOut)
	assert.True(t, rec.CheckOut.After(rec.CheckIn))
	assert.Equal(t, 0.0, *rec.DurationHours)
	assert.True(t, rec.Dirty)
	assert.True(t, rec.LastModified.After(t0))
}

func TestReports(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	p, err := s.CreatePerson(ctx, "Ana", "12345678-5")
	require.NoError(t, err)

	out := t0.Add(90 * time.Minute)
	hours := 1.5
	err = s.Update(ctx, func(ctx context.Context, r *Repos) error {
		if err := r.Attendance.Insert(ctx, &models.AttendanceRecord{
			GlobalID: "a1", PersonGlobalID: p.GlobalID, CheckIn: t0, CheckOut: &out, DurationHours: &hours,
			Dirty: true, LastModified: out,
		}); err != nil {
			return err
		}
		return r.Attendance.Insert(ctx, &models.AttendanceRecord{
			GlobalID: "a2", PersonGlobalID: p.GlobalID, CheckIn: t0.Add(24 * time.Hour),
			Dirty: true, LastModified: t0.Add(24 * time.Hour),
		})
	})
	require.NoError(t, err)

	person, recs, err := s.History(ctx, "12.345.678-5")
	require.NoError(t, err)
	assert.Equal(t, p.GlobalID, person.GlobalID)
	require.Len(t, recs, 2)
	assert.Equal(t, "a2", recs[0].GlobalID)

	_, _, err = s.History(ctx, "16789532-8")
	require.ErrorIs(t, err, common.ErrUnknownPerson)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Records)
	assert.InDelta(t, 1.5, stats[0].AverageHours, 1e-9)

	latest, err := s.LatestRecords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "a2", latest[0].GlobalID)
}

func TestDurationHours_RoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 1.5, DurationHours(t0, t0.Add(90*time.Minute)))
	assert.Equal(t, 0.33, DurationHours(t0, t0.Add(20*time.Minute)))
	assert.Equal(t, 0.0, DurationHours(t0, t0.Add(time.Millisecond)))
}
