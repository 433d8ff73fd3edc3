package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestFindDeviceByName(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal("/api/v0/devices", r.URL.Path)
		is.Equal("pump-1", r.URL.Query().Get("name"))

		w.Header().Add("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "name": "pump-1", "ip": "10.0.0.17:502", "coil": 1}]`))
	}))
	defer server.Close()

	c := New(server.URL, zerolog.Nop())

	device, err := c.FindDeviceByName(context.Background(), "pump-1")
	is.NoErr(err)
	is.Equal(uint(1), device.ID)
	is.Equal("pump-1", device.Name)
	is.Equal(1, *device.Coil)
}

func TestFindDeviceByID(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal("/api/v0/devices/1", r.URL.Path)

		w.Header().Add("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1, "name": "pump-1", "ip": "10.0.0.17:502"}`))
	}))
	defer server.Close()

	c := New(server.URL, zerolog.Nop())

	device, err := c.FindDeviceByID(context.Background(), 1)
	is.NoErr(err)
	is.Equal("pump-1", device.Name)
}

func TestUnknownDevice(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(server.URL, zerolog.Nop())

	_, err := c.FindDeviceByID(context.Background(), 4711)
	is.True(errors.Is(err, ErrDeviceNotFound))
}

func TestLatestStatusOfAll(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal("/api/v0/status", r.URL.Path)
		is.Equal("true", r.URL.Query().Get("raw"))

		w.Header().Add("Content-Type", "application/json")
		w.Write([]byte(`[{"device": {"id": 1, "name": "pump-1", "ip": "10.0.0.17:502"}, "latest": {"deviceID": 1, "time": "2026-08-28T12:00:00Z", "status": false, "error": "overheat"}}]`))
	}))
	defer server.Close()

	c := New(server.URL, zerolog.Nop())

	statuses, err := c.LatestStatusOfAll(context.Background())
	is.NoErr(err)
	is.Equal(1, len(statuses))
	is.Equal("pump-1", statuses[0].Device.Name)
	is.Equal("overheat", *statuses[0].Latest.Error)
}
