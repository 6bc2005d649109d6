package model

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Status string

const (
	StatusClockedOut Status = "clocked_out"
	StatusClockedIn  Status = "clocked_in"
)

// Next returns the event that moves a staff member out of this status.
func (s Status) Next() EventType {
	if s == StatusClockedIn {
		return EventClockOut
	}
	return EventClockIn
}

func (s Status) Valid() bool {
	return s == StatusClockedIn || s == StatusClockedOut
}

type StaffRecord struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string        `bson:"name" json:"name"`
	Status         Status        `bson:"status" json:"status"`
	DaysOff        []string      `bson:"days_off" json:"days_off"` // YYYY-MM-DD
	LastActivityAt *time.Time    `bson:"last_activity_at,omitempty" json:"last_activity_at"`
	CreatedAt      *time.Time    `bson:"created_at,omitempty" json:"created_at"`
}

// Clone returns a copy that shares no mutable state with r.
func (r StaffRecord) Clone() StaffRecord {
	c := r
	c.DaysOff = slices.Clone(r.DaysOff)
	if r.LastActivityAt != nil {
		t := *r.LastActivityAt
		c.LastActivityAt = &t
	}
	if r.CreatedAt != nil {
		t := *r.CreatedAt
		c.CreatedAt = &t
	}
	return c
}
