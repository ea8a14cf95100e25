package attendance

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/migrations"
	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Up(context.Background(), db)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO persons (global_id, full_name, national_id, dirty, last_modified, deleted) VALUES
		('p1', 'Ana', '12345678-5', 0, 0, 0),
		('p2', 'Beatriz', '16789532-8', 0, 0, 0),
		('p3', 'Carlos', '11111111-1', 0, 0, 1)`)
	require.NoError(t, err)
	return db
}

func openRecord(gid, person string, in time.Time) *models.AttendanceRecord {
	return &models.AttendanceRecord{GlobalID: gid, PersonGlobalID: person, CheckIn: in, Dirty: true, LastModified: in}
}

func closeRecord(r *models.AttendanceRecord, out time.Time, hours float64) {
	r.CheckOut = &out
	r.DurationHours = &hours
	r.LastModified = out
}

func TestInsert_OpenRecordRoundTrips(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	r := openRecord("a1", "p1", t0)
	require.NoError(t, repo.Insert(ctx, r))
	assert.NotZero(t, r.LocalID)

	got, err := repo.GetOpenByPerson(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.GlobalID)
	assert.True(t, got.Open())
	assert.Nil(t, got.DurationHours)
	assert.True(t, got.CheckIn.Equal(t0))
}

func TestUpdate_ClosesRecord(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	r := openRecord("a1", "p1", t0)
	require.NoError(t, repo.Insert(ctx, r))

	closeRecord(r, t0.Add(90*time.Minute), 1.5)
	require.NoError(t, repo.Update(ctx, r))

	_, err := repo.GetOpenByPerson(ctx, "p1")
	require.ErrorIs(t, err, common.ErrNotFound)

	got, err := repo.GetByGlobalID(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got.CheckOut)
	require.NotNil(t, got.DurationHours)
	assert.True(t, got.CheckOut.Equal(t0.Add(90*time.Minute)))
	assert.InDelta(t, 1.5, *got.DurationHours, 1e-9)
}

func TestUpdate_UnknownRecord(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	err := repo.Update(context.Background(), openRecord("missing", "p1", t0))
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestInsert_SecondOpenRecordRejected(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, openRecord("a1", "p1", t0)))
	err := repo.Insert(ctx, openRecord("a2", "p1", t0.Add(time.Minute)))
	require.Error(t, err)
}

func TestInsert_CheckOutNotAfterCheckInRejected(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	r := openRecord("a1", "p1", t0)
	closeRecord(r, t0, 0)
	require.Error(t, repo.Insert(context.Background(), r))
}

func TestUpsert_ReplacesExisting(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	r := openRecord("a1", "p1", t0)
	require.NoError(t, repo.Upsert(ctx, r))

	closeRecord(r, t0.Add(time.Hour), 1)
	r.Dirty = false
	require.NoError(t, repo.Upsert(ctx, r))

	got, err := repo.GetByGlobalID(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, got.Dirty)
	assert.False(t, got.Open())
}

func TestMarkSynced_RespectsVersion(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	r := openRecord("a1", "p1", t0)
	require.NoError(t, repo.Insert(ctx, r))
	closeRecord(r, t0.Add(time.Hour), 1)
	require.NoError(t, repo.Update(ctx, r))

	ok, err := repo.MarkSynced(ctx, "a1", t0)
	require.NoError(t, err)
	assert.False(t, ok)

	dirty, err := repo.ListDirty(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 1)

	ok, err = repo.MarkSynced(ctx, "a1", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	dirty, err = repo.ListDirty(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestListByPerson_NewestFirst(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	first := openRecord("a1", "p1", t0)
	closeRecord(first, t0.Add(time.Hour), 1)
	second := openRecord("a2", "p1", t0.Add(24*time.Hour))
	other := openRecord("a3", "p2", t0)
	gone := openRecord("a4", "p1", t0.Add(-24*time.Hour))
	closeRecord(gone, t0.Add(-23*time.Hour), 1)
	gone.Deleted = true
	for _, r := range []*models.AttendanceRecord{first, second, other, gone} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	list, err := repo.ListByPerson(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].GlobalID)
	assert.Equal(t, "a1", list[1].GlobalID)

	latest, err := repo.Latest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "a2", latest[0].GlobalID)
}

func TestStats_AggregatesClosedRecordsOfActivePersons(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a := openRecord("a1", "p1", t0)
	closeRecord(a, t0.Add(2*time.Hour), 2)
	b := openRecord("a2", "p1", t0.Add(24*time.Hour))
	closeRecord(b, t0.Add(25*time.Hour), 1.25)
	open := openRecord("a3", "p1", t0.Add(48*time.Hour))
	tomb := openRecord("a4", "p3", t0)
	closeRecord(tomb, t0.Add(time.Hour), 1)
	for _, r := range []*models.AttendanceRecord{a, b, open, tomb} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "12345678-5", stats[0].NationalID)
	assert.Equal(t, "Ana", stats[0].FullName)
	assert.Equal(t, 2, stats[0].Records)
	assert.InDelta(t, 3.25, stats[0].TotalHours, 1e-9)
	assert.InDelta(t, 1.63, stats[0].AverageHours, 1e-9)
}

func TestClosedDB_ErrorsWrapped(t *testing.T) {
	db := setupDB(t)
	repo := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	err := repo.Insert(context.Background(), openRecord("a1", "p1", t0))
	require.ErrorContains(t, err, "failed to insert attendance record")

	_, err = repo.Stats(context.Background())
	require.ErrorContains(t, err, "failed to select attendance stats")
}
