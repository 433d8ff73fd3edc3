package poller

import (
	"context"
	"errors"
	"strings"
	"time"

	mb "github.com/goburrow/modbus"

	"github.com/damsafe/device-monitor/pkg/types"
)

// StatusProber takes one up/down reading from a device.
// A false status means the device could not be reached at all; a device
// that answers with a Modbus exception is still up, with the exception
// text as the error.
type StatusProber interface {
	Probe(ctx context.Context, device types.Device) (bool, *string)
}

type modbusProber struct {
	timeout time.Duration
	slaveID byte
}

func NewModbusProber(timeout time.Duration) StatusProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &modbusProber{
		timeout: timeout,
		slaveID: 1,
	}
}

func (p *modbusProber) Probe(ctx context.Context, device types.Device) (bool, *string) {
	address := device.IP
	if !strings.Contains(address, ":") {
		address = address + ":502"
	}

	h := mb.NewTCPClientHandler(address)
	h.Timeout = p.timeout
	h.SlaveId = p.slaveID

	err := h.Connect()
	if err != nil {
		errText := err.Error()
		return false, &errText
	}
	defer h.Close()

	client := mb.NewClient(h)

	_, err = client.ReadCoils(uint16(*device.Coil), 1)
	if err != nil {
		var mbErr *mb.ModbusError
		if errors.As(err, &mbErr) {
			// the device answered, so it is up, but unhappy
			errText := mbErr.Error()
			return true, &errText
		}

		errText := err.Error()
		return false, &errText
	}

	return true, nil
}
