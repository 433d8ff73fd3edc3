package types

import "time"

type DeviceCreated struct {
	DeviceID  uint      `json:"deviceID"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *DeviceCreated) ContentType() string {
	return "application/json"
}
func (d *DeviceCreated) TopicName() string {
	return "device.created"
}

type DeviceUpdated struct {
	DeviceID  uint      `json:"deviceID"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *DeviceUpdated) ContentType() string {
	return "application/json"
}
func (d *DeviceUpdated) TopicName() string {
	return "device.updated"
}

type DeviceRemoved struct {
	DeviceID  uint      `json:"deviceID"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *DeviceRemoved) ContentType() string {
	return "application/json"
}
func (d *DeviceRemoved) TopicName() string {
	return "device.removed"
}

type DeviceStatusRecorded struct {
	DeviceID  uint      `json:"deviceID"`
	Status    bool      `json:"status"`
	Error     *string   `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *DeviceStatusRecorded) ContentType() string {
	return "application/json"
}
func (d *DeviceStatusRecorded) TopicName() string {
	return "device.statusRecorded"
}
