package monitoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/damsafe/device-monitor/internal/pkg/infrastructure/repositories/database"

	"github.com/matryer/is"
)

func TestRegisterAndGetDevice(t *testing.T) {
	is, ctx, s := testSetup(t)

	coil := 1
	device, err := s.RegisterDevice(ctx, "pump-1", "10.0.0.17:502", &coil)
	is.NoErr(err)
	is.True(device.ID != 0)

	fromDb, err := s.GetDevice(ctx, device.ID)
	is.NoErr(err)
	is.Equal("pump-1", fromDb.Name)
	is.Equal("10.0.0.17:502", fromDb.IP)
	is.Equal(1, *fromDb.Coil)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	is, ctx, s := testSetup(t)

	_, err := s.RegisterDevice(ctx, "pump-1", "10.0.0.17:502", nil)
	is.NoErr(err)

	_, err = s.RegisterDevice(ctx, "pump-1", "10.0.0.18:502", nil)
	is.True(errors.Is(err, ErrDeviceNameTaken))
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	is, ctx, s := testSetup(t)

	_, err := s.RegisterDevice(ctx, "  ", "10.0.0.17:502", nil)
	is.True(err != nil)
}

func TestGetDeviceByName(t *testing.T) {
	is, ctx, s := testSetup(t)

	created, err := s.RegisterDevice(ctx, "gate-2", "10.0.0.20:502", nil)
	is.NoErr(err)

	fromDb, err := s.GetDeviceByName(ctx, "gate-2")
	is.NoErr(err)
	is.Equal(created.ID, fromDb.ID)

	_, err = s.GetDeviceByName(ctx, "no-such-device")
	is.True(errors.Is(err, ErrDeviceNotFound))
}

func TestUpdateDevice(t *testing.T) {
	is, ctx, s := testSetup(t)

	coil := 3
	device, err := s.RegisterDevice(ctx, "pump-1", "10.0.0.17:502", &coil)
	is.NoErr(err)

	ip := "10.0.0.99:502"
	updated, err := s.UpdateDevice(ctx, device.ID, &ip, nil)
	is.NoErr(err)
	is.Equal("10.0.0.99:502", updated.IP)
	is.Equal(3, *updated.Coil)
	is.Equal("pump-1", updated.Name)

	newCoil := 7
	updated, err = s.UpdateDevice(ctx, device.ID, nil, &newCoil)
	is.NoErr(err)
	is.Equal("10.0.0.99:502", updated.IP)
	is.Equal(7, *updated.Coil)

	_, err = s.UpdateDevice(ctx, 4711, &ip, nil)
	is.True(errors.Is(err, ErrDeviceNotFound))
}

func TestGetDevicesOrderedByID(t *testing.T) {
	is, ctx, s := testSetup(t)

	for i := 1; i <= 4; i++ {
		_, err := s.RegisterDevice(ctx, fmt.Sprintf("device-%d", i), fmt.Sprintf("10.0.0.%d:502", i), nil)
		is.NoErr(err)
	}

	devices, err := s.GetDevices(ctx)
	is.NoErr(err)
	is.Equal(4, len(devices))

	for i := 1; i < len(devices); i++ {
		is.True(devices[i-1].ID < devices[i].ID)
	}
}

func TestRemoveDeviceCascadesObservations(t *testing.T) {
	is, ctx, s := testSetup(t)

	device, err := s.RegisterDevice(ctx, "pump-1", "10.0.0.17:502", nil)
	is.NoErr(err)

	err = s.RecordStatus(ctx, device.ID, time.Unix(100, 0), true, nil)
	is.NoErr(err)
	err = s.RecordStatus(ctx, device.ID, time.Unix(200, 0), true, nil)
	is.NoErr(err)

	err = s.RemoveDevice(ctx, device.ID)
	is.NoErr(err)

	_, err = s.GetDevice(ctx, device.ID)
	is.True(errors.Is(err, ErrDeviceNotFound))

	history, err := s.StatusHistory(ctx, device.ID, time.Time{}, time.Time{})
	is.NoErr(err)
	is.Equal(0, len(history))
}

func TestRemoveUnknownDevice(t *testing.T) {
	is, ctx, s := testSetup(t)

	err := s.RemoveDevice(ctx, 4711)
	is.True(errors.Is(err, ErrDeviceNotFound))
}

func testSetup(t *testing.T) (*is.I, context.Context, Store) {
	is := is.New(t)
	ctx := context.Background()

	s, err := NewStore(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	return is, ctx, s
}
