package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/damsafe/device-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/damsafe/device-monitor/pkg/types"
	"gorm.io/gorm"
)

var ErrDeviceNotFound = fmt.Errorf("device not found")
var ErrDeviceNameTaken = fmt.Errorf("device name already taken")
var ErrUnknownDevice = fmt.Errorf("unknown device")
var ErrDuplicateObservation = fmt.Errorf("duplicate observation")
var ErrNoObservations = fmt.Errorf("no observations recorded")
var ErrStorageUnavailable = fmt.Errorf("storage unavailable")

type Store interface {
	DeviceRegistry
	StatusLedger
	StatusQuery
}

type DeviceRegistry interface {
	RegisterDevice(ctx context.Context, name, ip string, coil *int) (types.Device, error)
	UpdateDevice(ctx context.Context, deviceID uint, ip *string, coil *int) (types.Device, error)
	RemoveDevice(ctx context.Context, deviceID uint) error
	GetDevice(ctx context.Context, deviceID uint) (types.Device, error)
	GetDeviceByName(ctx context.Context, name string) (types.Device, error)
	GetDevices(ctx context.Context) ([]types.Device, error)
}

type StatusLedger interface {
	RecordStatus(ctx context.Context, deviceID uint, observedAt time.Time, status bool, errText *string) error
	LatestStatus(ctx context.Context, deviceID uint) (types.StatusObservation, error)
	StatusHistory(ctx context.Context, deviceID uint, from, to time.Time) ([]types.StatusObservation, error)
	PurgeStatusesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type StatusQuery interface {
	CurrentStatusOfAll(ctx context.Context) ([]types.DeviceStatus, error)
	DevicesWithError(ctx context.Context) ([]types.DeviceStatus, error)
}

func NewStore(connect database.ConnectorFunc) (Store, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&Device{}, &StatusObservation{})
	if err != nil {
		return nil, err
	}

	return &store{
		db: impl,
	}, nil
}

type store struct {
	db *gorm.DB
}

// normalizeTime keeps observation timestamps comparable across storage
// engines. PostgreSQL stores timestamps with microsecond precision, so
// anything finer would break primary key equality between engines.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23503")
}
