package models

import (
	"encoding/json"
	"fmt"
	"time"

	cm "github.com/dmitrijs2005/garrison/internal/client/models"
)

// SyncRecord is the server copy of one synced entity. Payload holds the
// kind-specific snapshot; Seq orders rows for cursor-based pulls.
type SyncRecord struct {
	GlobalID     string
	Kind         cm.EntityKind
	Payload      json.RawMessage
	Deleted      bool
	LastModified time.Time
	Seq          int64
	OriginDevice string
}

// RecordFromEnvelope builds the stored form of env. Seq is assigned on write.
func RecordFromEnvelope(env *cm.ChangeEnvelope, deviceID string) (*SyncRecord, error) {
	var data any
	switch env.Kind {
	case cm.EntityKindPerson:
		data = env.Person
	case cm.EntityKindAttendance:
		data = env.Attendance
	default:
		return nil, fmt.Errorf("record for kind %q", env.Kind)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &SyncRecord{
		GlobalID:     env.GlobalID,
		Kind:         env.Kind,
		Payload:      payload,
		Deleted:      env.Deleted,
		LastModified: env.LastModified,
		OriginDevice: deviceID,
	}, nil
}

// Envelope converts r back to its wire form.
func (r *SyncRecord) Envelope() (cm.ChangeEnvelope, error) {
	env := cm.ChangeEnvelope{
		Kind:         r.Kind,
		GlobalID:     r.GlobalID,
		Deleted:      r.Deleted,
		LastModified: r.LastModified.UTC(),
	}

	switch r.Kind {
	case cm.EntityKindPerson:
		env.Person = &cm.PersonData{}
		if err := json.Unmarshal(r.Payload, env.Person); err != nil {
			return env, fmt.Errorf("decode person %s: %w", r.GlobalID, err)
		}
	case cm.EntityKindAttendance:
		env.Attendance = &cm.AttendanceData{}
		if err := json.Unmarshal(r.Payload, env.Attendance); err != nil {
			return env, fmt.Errorf("decode attendance %s: %w", r.GlobalID, err)
		}
	default:
		return env, fmt.Errorf("stored record %s has kind %q", r.GlobalID, r.Kind)
	}

	return env, nil
}
