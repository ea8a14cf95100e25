package store

import (
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/timex"
)

// CloseSession sets the check-out of an open record to now and marks it
// dirty. A check-out never lands on or before the check-in.
func CloseSession(rec *models.AttendanceRecord, now time.Time) {
	out := now
	if !out.After(rec.CheckIn) {
		out = rec.CheckIn.Add(time.Millisecond)
	}
	hours := DurationHours(rec.CheckIn, out)

	rec.CheckOut = &out
	rec.DurationHours = &hours
	rec.Dirty = true
	rec.LastModified = timex.Next(rec.LastModified, now)
}
