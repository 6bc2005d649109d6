package service

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/Horth168/staff-attendance-app/internal/model"
)

// Cache is the read side the services work against. It is satisfied by
// *livecache.Manager; the returned values are copies.
type Cache interface {
	Staff() []model.StaffRecord
	StaffByID(id bson.ObjectID) (model.StaffRecord, bool)
	Attendance() []model.AttendanceEvent
	Err() error
}
