package monitoring

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/damsafe/device-monitor/internal/pkg/application/events"
	"github.com/damsafe/device-monitor/internal/pkg/infrastructure/repositories/database/monitoring"
	"github.com/damsafe/device-monitor/pkg/types"
	"github.com/diwise/messaging-golang/pkg/messaging"
)

type DeviceMonitor interface {
	CreateDevice(ctx context.Context, name, ip string, coil *int) (types.Device, error)
	UpdateDevice(ctx context.Context, deviceID uint, ip *string, coil *int) (types.Device, error)
	RemoveDevice(ctx context.Context, deviceID uint) error
	GetDevice(ctx context.Context, deviceID uint) (types.Device, error)
	GetDeviceByName(ctx context.Context, name string) (types.Device, error)
	ListDevices(ctx context.Context) ([]types.Device, error)

	RecordStatus(ctx context.Context, deviceID uint, observedAt time.Time, status bool, errText *string) error
	LatestStatus(ctx context.Context, deviceID uint) (types.StatusObservation, error)
	StatusHistory(ctx context.Context, deviceID uint, from, to time.Time) ([]types.StatusObservation, error)
	PurgeStatuses(ctx context.Context, cutoff time.Time) (int64, error)

	CurrentStatus(ctx context.Context) ([]types.DeviceStatus, error)
	DevicesWithError(ctx context.Context) ([]types.DeviceStatus, error)
}

type deviceMonitor struct {
	store     monitoring.Store
	messaging messaging.MsgContext
	notifier  events.EventSender
}

func New(store monitoring.Store, m messaging.MsgContext, notifier events.EventSender) DeviceMonitor {
	dm := &deviceMonitor{
		store:     store,
		messaging: m,
		notifier:  notifier,
	}

	m.RegisterTopicMessageHandler("device-status", DeviceStatusTopicHandler(m, dm))

	return dm
}

func (d *deviceMonitor) CreateDevice(ctx context.Context, name, ip string, coil *int) (types.Device, error) {
	device, err := d.store.RegisterDevice(ctx, name, ip, coil)
	if err != nil {
		return types.Device{}, err
	}

	return device, d.messaging.PublishOnTopic(ctx, &types.DeviceCreated{
		DeviceID:  device.ID,
		Name:      device.Name,
		Timestamp: time.Now().UTC(),
	})
}

func (d *deviceMonitor) UpdateDevice(ctx context.Context, deviceID uint, ip *string, coil *int) (types.Device, error) {
	device, err := d.store.UpdateDevice(ctx, deviceID, ip, coil)
	if err != nil {
		return types.Device{}, err
	}

	return device, d.messaging.PublishOnTopic(ctx, &types.DeviceUpdated{
		DeviceID:  device.ID,
		Timestamp: time.Now().UTC(),
	})
}

func (d *deviceMonitor) RemoveDevice(ctx context.Context, deviceID uint) error {
	err := d.store.RemoveDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	return d.messaging.PublishOnTopic(ctx, &types.DeviceRemoved{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
	})
}

func (d *deviceMonitor) GetDevice(ctx context.Context, deviceID uint) (types.Device, error) {
	return d.store.GetDevice(ctx, deviceID)
}

func (d *deviceMonitor) GetDeviceByName(ctx context.Context, name string) (types.Device, error) {
	return d.store.GetDeviceByName(ctx, name)
}

func (d *deviceMonitor) ListDevices(ctx context.Context) ([]types.Device, error) {
	return d.store.GetDevices(ctx)
}

func (d *deviceMonitor) RecordStatus(ctx context.Context, deviceID uint, observedAt time.Time, status bool, errText *string) error {
	err := d.store.RecordStatus(ctx, deviceID, observedAt, status, errText)
	if err != nil {
		return err
	}

	err = d.messaging.PublishOnTopic(ctx, &types.DeviceStatusRecorded{
		DeviceID:  deviceID,
		Status:    status,
		Error:     errText,
		Timestamp: observedAt.UTC(),
	})
	if err != nil {
		return err
	}

	if !status && d.notifier != nil {
		return d.notifier.Send(ctx, types.StatusObservation{
			DeviceID: deviceID,
			Time:     observedAt.UTC(),
			Status:   status,
			Error:    errText,
		})
	}

	return nil
}

func (d *deviceMonitor) LatestStatus(ctx context.Context, deviceID uint) (types.StatusObservation, error) {
	return d.store.LatestStatus(ctx, deviceID)
}

func (d *deviceMonitor) StatusHistory(ctx context.Context, deviceID uint, from, to time.Time) ([]types.StatusObservation, error) {
	return d.store.StatusHistory(ctx, deviceID, from, to)
}

func (d *deviceMonitor) PurgeStatuses(ctx context.Context, cutoff time.Time) (int64, error) {
	return d.store.PurgeStatusesOlderThan(ctx, cutoff)
}

func (d *deviceMonitor) CurrentStatus(ctx context.Context) ([]types.DeviceStatus, error) {
	return d.store.CurrentStatusOfAll(ctx)
}

func (d *deviceMonitor) DevicesWithError(ctx context.Context) ([]types.DeviceStatus, error) {
	return d.store.DevicesWithError(ctx)
}

// DeviceStatusTopicHandler accepts observations submitted over the message
// bus by external pollers and records them through the same path as the
// built-in one.
func DeviceStatusTopicHandler(messenger messaging.MsgContext, dm DeviceMonitor) messaging.TopicMessageHandler {
	return func(ctx context.Context, msg amqp.Delivery, logger zerolog.Logger) {
		message := types.StatusMessage{}

		err := json.Unmarshal(msg.Body, &message)
		if err != nil {
			logger.Error().Err(err).Msgf("failed to unmarshal message from %s", msg.RoutingKey)
			return
		}

		logger = logger.With().Uint("deviceID", message.DeviceID).Logger()

		err = dm.RecordStatus(ctx, message.DeviceID, message.Time, message.Status, message.Error)
		if err != nil {
			logger.Error().Err(err).Msg("could not record status for device")
		}
	}
}
