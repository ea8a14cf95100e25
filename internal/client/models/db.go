// Package models defines the device-side data model: the synced entities and
// the envelope used to move them between the device and the sync server.
package models

import "time"

// Person is a registered member of the facility staff.
type Person struct {
	// LocalID is the device-local row number. It is never sent as identity.
	LocalID int64

	// GlobalID is assigned once at creation and is the cross-device identity.
	GlobalID string

	FullName string

	// NationalID is the normalized "<body>-<digit>" form.
	NationalID string

	// Dirty marks an unsynced local mutation.
	Dirty bool

	// LastModified is re-stamped on every mutation and drives last-writer-wins.
	LastModified time.Time

	// Deleted marks a tombstone; rows are never physically removed.
	Deleted bool
}

// AttendanceRecord is one check-in, optionally closed by a check-out.
type AttendanceRecord struct {
	LocalID        int64
	GlobalID       string
	PersonGlobalID string

	CheckIn time.Time
	// CheckOut is nil while the person is present.
	CheckOut *time.Time
	// DurationHours is set together with CheckOut.
	DurationHours *float64

	Dirty        bool
	LastModified time.Time
	Deleted      bool
}

// Open reports whether the record has no check-out yet.
func (r *AttendanceRecord) Open() bool {
	return r.CheckOut == nil
}

// PersonStats aggregates closed attendance for one person.
type PersonStats struct {
	NationalID   string
	FullName     string
	Records      int
	TotalHours   float64
	AverageHours float64
}
