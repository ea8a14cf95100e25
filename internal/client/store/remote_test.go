package store

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personEnv(gid, name, nid string, lm time.Time) models.ChangeEnvelope {
	return models.ChangeEnvelope{
		Kind: models.EntityKindPerson, GlobalID: gid, LastModified: lm,
		Person: &models.PersonData{FullName: name, NationalID: nid},
	}
}

func attendanceEnv(gid, person string, in time.Time, out *time.Time, lm time.Time) models.ChangeEnvelope {
	return models.ChangeEnvelope{
		Kind: models.EntityKindAttendance, GlobalID: gid, LastModified: lm,
		Attendance: &models.AttendanceData{PersonGlobalID: person, CheckIn: in, CheckOut: out},
	}
}

func getPerson(t *testing.T, s *Store, gid string) *models.Person {
	t.Helper()
	var p *models.Person
	require.NoError(t, s.View(context.Background(), func(ctx context.Context, r *Repos) error {
		var err error
		p, err = r.Persons.GetByGlobalID(ctx, gid)
		return err
	}))
	return p
}

func TestUpsertFromRemote_LastWriterWins(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	local, err := s.CreatePerson(ctx, "Ana", "12345678-5")
	require.NoError(t, err)

	out, err := s.UpsertFromRemote(ctx, personEnv(local.GlobalID, "Older", "12345678-5", t0.Add(-time.Second)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, out)

	out, err = s.UpsertFromRemote(ctx, personEnv(local.GlobalID, "Tie", "12345678-5", t0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, out)
	got := getPerson(t, s, local.GlobalID)
	assert.Equal(t, "Ana", got.FullName)
	assert.True(t, got.Dirty)

	out, err = s.UpsertFromRemote(ctx, personEnv(local.GlobalID, "Newer", "12345678-5", t0.Add(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	got = getPerson(t, s, local.GlobalID)
	assert.Equal(t, "Newer", got.FullName)
	assert.False(t, got.Dirty)
	assert.Equal(t, local.LocalID, got.LocalID)
}

func TestUpsertFromRemote_NewRowIsClean(t *testing.T) {
	s, _ := openStore(t)
	out, err := s.UpsertFromRemote(context.Background(), personEnv("r1", "Remote", "16789532-8", t0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.False(t, getPerson(t, s, "r1").Dirty)
}

func TestUpsertFromRemote_UnknownKind(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.UpsertFromRemote(context.Background(), models.ChangeEnvelope{Kind: "vehicle", GlobalID: "x", LastModified: t0})
	require.ErrorIs(t, err, common.ErrStorage)
	require.ErrorIs(t, err, common.ErrUnknownEntityKind)
}

func TestUpsertFromRemote_DuplicateNationalIDIsConflict(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	_, err := s.CreatePerson(ctx, "Ana", "12345678-5")
	require.NoError(t, err)

	out, err := s.UpsertFromRemote(ctx, personEnv("other", "Impostor", "12.345.678-5", t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, out)

	out, err = s.UpsertFromRemote(ctx, models.ChangeEnvelope{
		Kind: models.EntityKindPerson, GlobalID: "other", LastModified: t0.Add(time.Hour), Deleted: true,
		Person: &models.PersonData{FullName: "Impostor", NationalID: "12345678-5"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
}

func TestUpsertFromRemote_SecondOpenSessionIsConflict(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	out, err := s.UpsertFromRemote(ctx, attendanceEnv("a1", "p1", t0, nil, t0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	out, err = s.UpsertFromRemote(ctx, attendanceEnv("a2", "p1", t0.Add(time.Minute), nil, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, out)

	checkout := t0.Add(2 * time.Hour)
	out, err = s.UpsertFromRemote(ctx, attendanceEnv("a1", "p1", t0, &checkout, checkout))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	var rec *models.AttendanceRecord
	require.NoError(t, s.View(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		rec, err = r.Attendance.GetByGlobalID(ctx, "a1")
		return err
	}))
	require.NotNil(t, rec.DurationHours)
	assert.Equal(t, 2.0, *rec.DurationHours)
	assert.False(t, rec.Dirty)
}

func TestUpsertFromRemote_CheckOutBeforeCheckInIsConflict(t *testing.T) {
	s, _ := openStore(t)
	bad := t0.Add(-time.Minute)
	out, err := s.UpsertFromRemote(context.Background(), attendanceEnv("a1", "p1", t0, &bad, t0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, out)
}

func TestApplyRemote_StoresCursorAtomically(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	res, err := s.ApplyRemote(ctx, []models.ChangeEnvelope{
		personEnv("r1", "Remote", "16789532-8", t0),
		attendanceEnv("a1", "r1", t0, nil, t0),
	}, 7)
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Applied: 2, Cursor: 7}, res)

	cur, err := s.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cur)

	_, err = s.ApplyRemote(ctx, []models.ChangeEnvelope{
		personEnv("r2", "Second", "11111111-1", t0),
		{Kind: "vehicle", GlobalID: "x", LastModified: t0},
	}, 9)
	require.ErrorIs(t, err, common.ErrUnknownEntityKind)

	cur, err = s.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cur)

	_, err = s.FindPersonByNationalID(ctx, "11111111-1")
	require.ErrorIs(t, err, common.ErrUnknownPerson)
}

func TestMarkSynced_KeepsRowsMutatedAfterExtraction(t *testing.T) {
	s, clock := openStore(t)
	ctx := context.Background()

	a, err := s.CreatePerson(ctx, "Ana", "12345678-5")
	require.NoError(t, err)
	b, err := s.CreatePerson(ctx, "Beatriz", "16789532-8")
	require.NoError(t, err)

	acks := []models.Ack{
		{Kind: models.EntityKindPerson, GlobalID: a.GlobalID, LastModified: a.LastModified},
		{Kind: models.EntityKindPerson, GlobalID: b.GlobalID, LastModified: b.LastModified},
	}

	clock.Advance(time.Second)
	_, err = s.RenamePerson(ctx, b.GlobalID, "Beatriz R.")
	require.NoError(t, err)

	n, err := s.MarkSynced(ctx, acks)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, getPerson(t, s, a.GlobalID).Dirty)
	assert.True(t, getPerson(t, s, b.GlobalID).Dirty)

	_, err = s.MarkSynced(ctx, []models.Ack{{Kind: "vehicle", GlobalID: "x"}})
	require.ErrorIs(t, err, common.ErrUnknownEntityKind)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "applied", OutcomeApplied.String())
	assert.Equal(t, "stale", OutcomeStale.String())
	assert.Equal(t, "conflict", OutcomeConflict.String())
}

func TestUpsertFromRemote_Idempotent(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	env := personEnv("r1", "Remote", "16789532-8", t0)
	out, err := s.UpsertFromRemote(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	first := getPerson(t, s, "r1")

	out, err = s.UpsertFromRemote(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, out)
	assert.Equal(t, first, getPerson(t, s, "r1"))
}
