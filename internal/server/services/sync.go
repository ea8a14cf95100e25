// Package services holds the server-side sync authority.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	cm "github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/dbx"
	"github.com/dmitrijs2005/garrison/internal/logging"
	"github.com/dmitrijs2005/garrison/internal/nationalid"
	"github.com/dmitrijs2005/garrison/internal/proto"
	"github.com/dmitrijs2005/garrison/internal/server/archive"
	"github.com/dmitrijs2005/garrison/internal/server/models"
	"github.com/dmitrijs2005/garrison/internal/server/repositories/records"
	"github.com/dmitrijs2005/garrison/internal/timex"
)

// SyncService reconciles device batches against the server copy.
type SyncService struct {
	db       *sql.DB
	newRepo  func(dbx.DBTX) records.Repository
	archiver archive.Archiver
	log      logging.Logger
}

func NewSyncService(db *sql.DB, a archive.Archiver, l logging.Logger) *SyncService {
	return &SyncService{
		db: db,
		newRepo: func(tx dbx.DBTX) records.Repository {
			return records.NewPostgresRepository(tx)
		},
		archiver: a,
		log:      l,
	}
}

// Sync applies req for deviceID and returns what the device has not seen.
//
// The whole batch runs in one transaction under an advisory lock. An
// operation that loses last-writer-wins or fails validation is not stored.
// When a server copy exists it is sent back in Changes and the operation is
// acknowledged; otherwise it is left out of Accepted so the device keeps it
// pending. An unknown entity kind rejects the batch.
func (s *SyncService) Sync(ctx context.Context, deviceID string, req *proto.SyncRequest) (*proto.SyncResponse, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: missing device id", common.ErrInvalidOperation)
	}
	for i := range req.Operations {
		if err := req.Operations[i].Validate(); err != nil {
			if errors.Is(err, common.ErrUnknownEntityKind) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidOperation, err)
		}
	}

	resp := &proto.SyncResponse{
		Changes:  []proto.ChangeEnvelope{},
		Accepted: make([]string, 0, len(req.Operations)),
	}
	var stored []proto.ChangeEnvelope

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.newRepo(tx)
		if err := repo.Lock(ctx); err != nil {
			return err
		}

		var refused []*models.SyncRecord
		for _, op := range req.Operations {
			env, current, err := s.apply(ctx, repo, deviceID, op)
			if err != nil {
				return err
			}
			switch {
			case env != nil:
				resp.Accepted = append(resp.Accepted, op.GlobalID)
				stored = append(stored, *env)
			case current != nil:
				resp.Accepted = append(resp.Accepted, op.GlobalID)
				refused = append(refused, current)
			}
		}

		changes, err := repo.ChangesSince(ctx, max(req.Cursor, 0), deviceID)
		if err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(changes))
		for _, rec := range append(changes, refused...) {
			if _, dup := seen[rec.GlobalID]; dup {
				continue
			}
			seen[rec.GlobalID] = struct{}{}
			env, err := rec.Envelope()
			if err != nil {
				return err
			}
			resp.Changes = append(resp.Changes, env)
		}

		resp.Cursor, err = repo.MaxSeq(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(stored) > 0 {
		if err := s.archiver.Archive(ctx, deviceID, stored); err != nil {
			s.log.Warn(ctx, "batch archive failed", "device_id", deviceID, "error", err)
		}
	}

	s.log.Info(ctx, "sync",
		"device_id", deviceID,
		"received", len(req.Operations),
		"stored", len(stored),
		"changes", len(resp.Changes),
		"cursor", resp.Cursor,
	)

	return resp, nil
}

// apply stores op when it is valid and strictly newer than the server copy.
// It returns the stored envelope, or nil and the current server copy.
func (s *SyncService) apply(ctx context.Context, repo records.Repository, deviceID string, op proto.ChangeEnvelope) (*proto.ChangeEnvelope, *models.SyncRecord, error) {
	op.LastModified = timex.Stamp(op.LastModified)

	current, err := repo.Get(ctx, op.GlobalID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, nil, err
		}
	}

	if current != nil && !op.LastModified.After(current.LastModified) {
		s.refuse(ctx, op, "stale")
		return nil, current, nil
	}

	reason, err := s.check(ctx, repo, &op)
	if err != nil {
		return nil, nil, err
	}
	if reason != "" {
		s.refuse(ctx, op, reason)
		return nil, current, nil
	}

	rec, err := models.RecordFromEnvelope(&op, deviceID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := repo.Upsert(ctx, rec); err != nil {
		return nil, nil, err
	}

	return &op, nil, nil
}

// check validates op's content, normalizing person ids in place. A non-empty
// reason refuses the operation.
func (s *SyncService) check(ctx context.Context, repo records.Repository, op *proto.ChangeEnvelope) (string, error) {
	switch op.Kind {
	case cm.EntityKindPerson:
		id, err := nationalid.Normalize(op.Person.NationalID)
		if err != nil || !id.Valid() {
			return "invalid national id", nil
		}
		person := *op.Person
		person.NationalID = id.String()
		op.Person = &person

		if op.Deleted {
			return "", nil
		}
		_, err = repo.NationalIDOwner(ctx, person.NationalID, op.GlobalID)
		switch {
		case err == nil:
			return "duplicate national id", nil
		case errors.Is(err, common.ErrNotFound):
			return "", nil
		default:
			return "", err
		}

	case cm.EntityKindAttendance:
		a := op.Attendance
		if a.PersonGlobalID == "" {
			return "missing person", nil
		}
		if a.CheckOut != nil && !a.CheckOut.After(a.CheckIn) {
			return "checkout not after checkin", nil
		}
	}
	return "", nil
}

func (s *SyncService) refuse(ctx context.Context, op proto.ChangeEnvelope, reason string) {
	s.log.Warn(ctx, "operation refused",
		"kind", string(op.Kind),
		"global_id", op.GlobalID,
		"reason", reason,
	)
}
