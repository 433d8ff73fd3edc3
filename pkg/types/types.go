package types

import (
	"time"
)

// Device is a registered network endpoint being monitored. The coil is the
// Modbus register that the poller probes; devices without a coil are kept in
// the registry but never polled.
type Device struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
	Coil *int   `json:"coil,omitempty"`
}

// StatusObservation is one timestamped up/down reading for a device.
// Observations are immutable once recorded.
type StatusObservation struct {
	DeviceID uint      `json:"deviceID"`
	Time     time.Time `json:"time"`
	Status   bool      `json:"status"`
	Error    *string   `json:"error,omitempty"`
}

// DeviceStatus pairs a device with its most recent observation.
// Latest is nil for devices that have never reported.
type DeviceStatus struct {
	Device Device             `json:"device"`
	Latest *StatusObservation `json:"latest,omitempty"`
}

// StatusMessage is the body of messages on the device-status routing key.
type StatusMessage struct {
	DeviceID uint      `json:"deviceID"`
	Time     time.Time `json:"time"`
	Status   bool      `json:"status"`
	Error    *string   `json:"error,omitempty"`
}
