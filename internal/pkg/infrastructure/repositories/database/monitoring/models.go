package monitoring

import (
	"time"

	"github.com/damsafe/device-monitor/pkg/types"
)

// Device is the registry row. No soft delete here, removal is a hard
// cascade over the observations in a single transaction.
type Device struct {
	ID   uint   `gorm:"primarykey"`
	Name string `gorm:"uniqueIndex;not null"`
	IP   string
	Coil *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d Device) ToType() types.Device {
	return types.Device{
		ID:   d.ID,
		Name: d.Name,
		IP:   d.IP,
		Coil: d.Coil,
	}
}

// StatusObservation rows are keyed on (device_id, time) so a device can
// never hold two readings for the same instant.
type StatusObservation struct {
	DeviceID uint      `gorm:"primaryKey;autoIncrement:false"`
	Time     time.Time `gorm:"primaryKey"`
	Status   bool
	Error    *string

	Device Device `gorm:"constraint:OnDelete:RESTRICT"`
}

func (StatusObservation) TableName() string {
	return "device_status"
}

func (s StatusObservation) ToType() types.StatusObservation {
	return types.StatusObservation{
		DeviceID: s.DeviceID,
		Time:     s.Time,
		Status:   s.Status,
		Error:    s.Error,
	}
}
