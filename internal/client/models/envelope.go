package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/garrison/internal/common"
)

// EntityKind is the closed set of entity variants that can be synced.
type EntityKind string

const (
	EntityKindPerson     EntityKind = "person"
	EntityKindAttendance EntityKind = "attendance"
)

// Valid reports whether k is a known kind.
func (k EntityKind) Valid() bool {
	return k == EntityKindPerson || k == EntityKindAttendance
}

// PersonData is the field snapshot of a person.
type PersonData struct {
	FullName   string `json:"fullName"`
	NationalID string `json:"nationalId"`
}

// AttendanceData is the field snapshot of an attendance record.
type AttendanceData struct {
	PersonGlobalID string     `json:"personGlobalId"`
	CheckIn        time.Time  `json:"checkIn"`
	CheckOut       *time.Time `json:"checkOut"`
	DurationHours  *float64   `json:"durationHours"`
}

// ChangeEnvelope is one row in transit. Exactly one of Person and Attendance
// is set, matching Kind.
type ChangeEnvelope struct {
	Kind         EntityKind      `json:"entityKind"`
	GlobalID     string          `json:"globalId"`
	Deleted      bool            `json:"deleted"`
	LastModified time.Time       `json:"lastModified"`
	Person       *PersonData     `json:"person,omitempty"`
	Attendance   *AttendanceData `json:"attendance,omitempty"`
}

// Validate checks that the envelope is a known kind carrying its snapshot.
func (e *ChangeEnvelope) Validate() error {
	switch e.Kind {
	case EntityKindPerson:
		if e.Person == nil {
			return fmt.Errorf("person envelope %s has no person data", e.GlobalID)
		}
	case EntityKindAttendance:
		if e.Attendance == nil {
			return fmt.Errorf("attendance envelope %s has no attendance data", e.GlobalID)
		}
	default:
		return fmt.Errorf("%w: %q", common.ErrUnknownEntityKind, e.Kind)
	}
	if e.GlobalID == "" {
		return fmt.Errorf("%s envelope without global id", e.Kind)
	}
	return nil
}

// Ack identifies the exact row version that was pushed. Clearing the dirty
// flag is conditional on the version still being current.
type Ack struct {
	Kind         EntityKind
	GlobalID     string
	LastModified time.Time
}

// PersonEnvelope builds the envelope for p.
func PersonEnvelope(p *Person) ChangeEnvelope {
	return ChangeEnvelope{
		Kind:         EntityKindPerson,
		GlobalID:     p.GlobalID,
		Deleted:      p.Deleted,
		LastModified: p.LastModified,
		Person:       &PersonData{FullName: p.FullName, NationalID: p.NationalID},
	}
}

// AttendanceEnvelope builds the envelope for r.
func AttendanceEnvelope(r *AttendanceRecord) ChangeEnvelope {
	return ChangeEnvelope{
		Kind:         EntityKindAttendance,
		GlobalID:     r.GlobalID,
		Deleted:      r.Deleted,
		LastModified: r.LastModified,
		Attendance: &AttendanceData{
			PersonGlobalID: r.PersonGlobalID,
			CheckIn:        r.CheckIn,
			CheckOut:       r.CheckOut,
			DurationHours:  r.DurationHours,
		},
	}
}

// Ack returns the acknowledgement key of the envelope.
func (e *ChangeEnvelope) Ack() Ack {
	return Ack{Kind: e.Kind, GlobalID: e.GlobalID, LastModified: e.LastModified}
}
