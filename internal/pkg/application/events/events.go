package events

import (
	"context"
	"errors"
	"fmt"
	"io"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/damsafe/device-monitor/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
	yaml "gopkg.in/yaml.v2"
)

const deviceDownEventType = "damsafe.devicedown"

type EventSender interface {
	Send(ctx context.Context, observation types.StatusObservation) error
}

type eventSender struct {
	logger      zerolog.Logger
	subscribers map[string][]SubscriberConfig
}

func New(cfg *Config, logger zerolog.Logger) EventSender {
	e := &eventSender{
		logger:      logger,
		subscribers: make(map[string][]SubscriberConfig),
	}

	if cfg != nil {
		for _, n := range cfg.Notifications {
			e.subscribers[n.Type] = n.Subscribers
		}
	}

	return e
}

func (e *eventSender) Send(ctx context.Context, observation types.StatusObservation) error {
	if s, ok := e.subscribers[deviceDownEventType]; !ok || len(s) == 0 {
		return nil
	}

	c, err := cloudevents.NewClientHTTP()
	if err != nil {
		return err
	}

	event := cloudevents.NewEvent()
	event.SetID(fmt.Sprintf("%d:%d", observation.DeviceID, observation.Time.Unix()))
	event.SetTime(observation.Time)
	event.SetSource("github.com/damsafe/device-monitor")
	event.SetType(deviceDownEventType)

	err = event.SetData(cloudevents.ApplicationJSON, observation)
	if err != nil {
		return err
	}

	for _, s := range e.subscribers[deviceDownEventType] {
		ctxWithTarget := cloudevents.ContextWithTarget(ctx, s.Endpoint)

		result := c.Send(ctxWithTarget, event)
		if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
			e.logger.Error().Err(result).Msgf("failed to send event to %s", s.Endpoint)
			err = fmt.Errorf("%w", result)
		}
	}

	return err
}

type SubscriberConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type Notification struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

type Config struct {
	Notifications []Notification `yaml:"notifications"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := yaml.Unmarshal(buf, &cfg); err == nil {
		return &cfg, nil
	} else {
		return nil, err
	}
}
