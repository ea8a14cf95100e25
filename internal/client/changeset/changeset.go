// Package changeset collects the rows awaiting synchronization.
package changeset

import (
	"context"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/client/store"
)

// Source is the read side of the store used for extraction.
type Source interface {
	View(ctx context.Context, fn func(ctx context.Context, r *store.Repos) error) error
}

// Extractor builds change sets from a Source.
type Extractor struct {
	src Source
}

// NewExtractor returns an Extractor reading from src.
func NewExtractor(src Source) *Extractor {
	return &Extractor{src: src}
}

// PendingChanges returns every dirty person and attendance record, tombstones
// included, as envelopes carrying the full field snapshot. Both tables are
// read in one transaction.
func (e *Extractor) PendingChanges(ctx context.Context) ([]models.ChangeEnvelope, error) {
	var out []models.ChangeEnvelope
	err := e.src.View(ctx, func(ctx context.Context, r *store.Repos) error {
		ps, err := r.Persons.ListDirty(ctx)
		if err != nil {
			return err
		}
		recs, err := r.Attendance.ListDirty(ctx)
		if err != nil {
			return err
		}

		out = make([]models.ChangeEnvelope, 0, len(ps)+len(recs))
		for _, p := range ps {
			out = append(out, models.PersonEnvelope(p))
		}
		for _, rec := range recs {
			out = append(out, models.AttendanceEnvelope(rec))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
