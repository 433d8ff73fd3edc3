package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	db "github.com/damsafe/device-monitor/internal/pkg/infrastructure/repositories/database/monitoring"
	"github.com/damsafe/device-monitor/pkg/types"
)

// DeviceMonitor is the slice of the service layer the poller needs.
type DeviceMonitor interface {
	ListDevices(ctx context.Context) ([]types.Device, error)
	RecordStatus(ctx context.Context, deviceID uint, observedAt time.Time, status bool, errText *string) error
}

type Poller interface {
	Start()
	Stop()
}

type pollerImpl struct {
	done     chan bool
	log      zerolog.Logger
	app      DeviceMonitor
	prober   StatusProber
	interval time.Duration
}

func New(app DeviceMonitor, prober StatusProber, interval time.Duration, log zerolog.Logger) Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &pollerImpl{
		done:     make(chan bool),
		log:      log,
		app:      app,
		prober:   prober,
		interval: interval,
	}
}

func (p *pollerImpl) Start() {
	go backgroundWorker(p, p.done)
}

func (p *pollerImpl) Stop() {
	p.done <- true
}

func backgroundWorker(p *pollerImpl, done <-chan bool) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.sweep(context.Background())
		}
	}
}

func (p *pollerImpl) sweep(ctx context.Context) {
	devices, err := p.app.ListDevices(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("could not list devices")
		return
	}

	for _, device := range devices {
		if device.Coil == nil {
			continue
		}

		status, errText := p.prober.Probe(ctx, device)

		err = p.app.RecordStatus(ctx, device.ID, time.Now().UTC(), status, errText)
		if err != nil {
			if errors.Is(err, db.ErrDuplicateObservation) {
				p.log.Debug().Uint("deviceID", device.ID).Msg("observation already recorded for this instant")
				continue
			}
			p.log.Error().Err(err).Uint("deviceID", device.ID).Msg("could not record status for device")
		}
	}
}
