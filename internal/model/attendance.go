package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// EventType is the kind of clock transition recorded in the attendance log.
type EventType string

const (
	EventClockIn  EventType = "clock_in"
	EventClockOut EventType = "clock_out"
)

const (
	StaffCollection      = "staff"
	AttendanceCollection = "attendance"
)

// Status returns the presence status an event of this type leads to.
func (t EventType) Status() Status {
	if t == EventClockIn {
		return StatusClockedIn
	}
	return StatusClockedOut
}

func (t EventType) Valid() bool {
	return t == EventClockIn || t == EventClockOut
}

// AttendanceEvent is one immutable entry of the attendance log.
// Timestamp stays nil until the store has committed the write.
type AttendanceEvent struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	StaffID   bson.ObjectID `bson:"staff_id" json:"staff_id"`
	StaffName string        `bson:"staff_name" json:"staff_name"` // snapshot at event time
	Type      EventType     `bson:"type" json:"type"`
	Timestamp *time.Time    `bson:"timestamp,omitempty" json:"timestamp"`
}

// Pending reports whether the server timestamp has not been assigned yet.
func (e AttendanceEvent) Pending() bool {
	return e.Timestamp == nil
}
