package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/damsafe/device-monitor/internal/pkg/infrastructure/repositories/database"
	db "github.com/damsafe/device-monitor/internal/pkg/infrastructure/repositories/database/monitoring"
	"github.com/damsafe/device-monitor/pkg/types"
	"github.com/diwise/messaging-golang/pkg/messaging"
)

func TestCreateDevicePublishesOnTopic(t *testing.T) {
	is, ctx, svc, published := testSetupService(t)

	coil := 1
	device, err := svc.CreateDevice(ctx, "pump-1", "10.0.0.17:502", &coil)
	is.NoErr(err)
	is.True(device.ID != 0)

	is.Equal(1, len(*published))
	created, ok := (*published)[0].(*types.DeviceCreated)
	is.True(ok)
	is.Equal(device.ID, created.DeviceID)
	is.Equal("pump-1", created.Name)
}

func TestRemoveDevicePublishesOnTopic(t *testing.T) {
	is, ctx, svc, published := testSetupService(t)

	device, err := svc.CreateDevice(ctx, "pump-1", "10.0.0.17:502", nil)
	is.NoErr(err)

	err = svc.RemoveDevice(ctx, device.ID)
	is.NoErr(err)

	removed, ok := (*published)[len(*published)-1].(*types.DeviceRemoved)
	is.True(ok)
	is.Equal(device.ID, removed.DeviceID)
}

func TestRecordStatusPublishesOnTopic(t *testing.T) {
	is, ctx, svc, published := testSetupService(t)

	device, err := svc.CreateDevice(ctx, "pump-1", "10.0.0.17:502", nil)
	is.NoErr(err)

	err = svc.RecordStatus(ctx, device.ID, time.Unix(100, 0), true, nil)
	is.NoErr(err)

	recorded, ok := (*published)[len(*published)-1].(*types.DeviceStatusRecorded)
	is.True(ok)
	is.Equal(device.ID, recorded.DeviceID)
	is.Equal(true, recorded.Status)
}

func TestRecordStatusRejectionDoesNotPublish(t *testing.T) {
	is, ctx, svc, published := testSetupService(t)

	device, err := svc.CreateDevice(ctx, "pump-1", "10.0.0.17:502", nil)
	is.NoErr(err)

	is.NoErr(svc.RecordStatus(ctx, device.ID, time.Unix(100, 0), true, nil))

	countBefore := len(*published)

	err = svc.RecordStatus(ctx, device.ID, time.Unix(100, 0), false, nil)
	is.True(errors.Is(err, db.ErrDuplicateObservation))
	is.Equal(countBefore, len(*published))
}

func TestDownObservationNotifiesSubscribers(t *testing.T) {
	is, ctx, svc, _ := testSetupService(t)

	notified := []types.StatusObservation{}
	svc.(*deviceMonitor).notifier = &eventSenderFunc{
		send: func(ctx context.Context, o types.StatusObservation) error {
			notified = append(notified, o)
			return nil
		},
	}

	device, err := svc.CreateDevice(ctx, "pump-1", "10.0.0.17:502", nil)
	is.NoErr(err)

	is.NoErr(svc.RecordStatus(ctx, device.ID, time.Unix(100, 0), true, nil))
	is.Equal(0, len(notified))

	overheat := "overheat"
	is.NoErr(svc.RecordStatus(ctx, device.ID, time.Unix(200, 0), false, &overheat))
	is.Equal(1, len(notified))
	is.Equal("overheat", *notified[0].Error)
}

func TestDeviceStatusTopicHandler(t *testing.T) {
	is, ctx, svc, _ := testSetupService(t)

	device, err := svc.CreateDevice(ctx, "pump-1", "10.0.0.17:502", nil)
	is.NoErr(err)

	refused := "connection refused"
	body, _ := json.Marshal(types.StatusMessage{
		DeviceID: device.ID,
		Time:     time.Unix(100, 0).UTC(),
		Status:   false,
		Error:    &refused,
	})

	handler := DeviceStatusTopicHandler(nil, svc)
	handler(ctx, amqp.Delivery{Body: body, RoutingKey: "device-status"}, zerolog.Nop())

	latest, err := svc.LatestStatus(ctx, device.ID)
	is.NoErr(err)
	is.Equal(false, latest.Status)
	is.Equal("connection refused", *latest.Error)
}

func TestHandlerIgnoresGarbageMessages(t *testing.T) {
	is, ctx, svc, _ := testSetupService(t)

	device, err := svc.CreateDevice(ctx, "pump-1", "10.0.0.17:502", nil)
	is.NoErr(err)

	handler := DeviceStatusTopicHandler(nil, svc)
	handler(ctx, amqp.Delivery{Body: []byte("not json"), RoutingKey: "device-status"}, zerolog.Nop())

	_, err = svc.LatestStatus(ctx, device.ID)
	is.True(errors.Is(err, db.ErrNoObservations))
}

type eventSenderFunc struct {
	send func(ctx context.Context, o types.StatusObservation) error
}

func (e *eventSenderFunc) Send(ctx context.Context, o types.StatusObservation) error {
	return e.send(ctx, o)
}

func testSetupService(t *testing.T) (*is.I, context.Context, DeviceMonitor, *[]messaging.TopicMessage) {
	is := is.New(t)
	ctx := context.Background()

	published := &[]messaging.TopicMessage{}

	msgCtx := &messaging.MsgContextMock{
		RegisterTopicMessageHandlerFunc: func(routingKey string, handler messaging.TopicMessageHandler) {
		},
		PublishOnTopicFunc: func(ctx context.Context, message messaging.TopicMessage) error {
			*published = append(*published, message)
			return nil
		},
	}

	store, err := db.NewStore(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	svc := New(store, msgCtx, nil)

	return is, ctx, svc, published
}
