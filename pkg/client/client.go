package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/damsafe/device-monitor/pkg/types"
)

// DeviceMonitorClient looks up devices and their readings over the
// device-monitor HTTP API.
type DeviceMonitorClient interface {
	FindDeviceByName(ctx context.Context, name string) (types.Device, error)
	FindDeviceByID(ctx context.Context, deviceID uint) (types.Device, error)
	LatestStatusOfAll(ctx context.Context) ([]types.DeviceStatus, error)
}

type monitorClient struct {
	url string
	log zerolog.Logger
}

var tracer = otel.Tracer("device-monitor-client")

func New(url string, log zerolog.Logger) DeviceMonitorClient {
	return &monitorClient{
		url: url,
		log: log,
	}
}

var ErrDeviceNotFound = fmt.Errorf("device not found")

func (c *monitorClient) FindDeviceByName(ctx context.Context, name string) (types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "find-device-by-name")
	defer span.End()

	var devices []types.Device
	err = c.get(ctx, c.url+"/api/v0/devices?name="+name, &devices)
	if err != nil {
		return types.Device{}, err
	}

	if len(devices) == 0 {
		return types.Device{}, ErrDeviceNotFound
	}

	return devices[0], nil
}

func (c *monitorClient) FindDeviceByID(ctx context.Context, deviceID uint) (types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "find-device-by-id")
	defer span.End()

	var device types.Device
	err = c.get(ctx, fmt.Sprintf("%s/api/v0/devices/%d", c.url, deviceID), &device)
	if err != nil {
		return types.Device{}, err
	}

	return device, nil
}

func (c *monitorClient) LatestStatusOfAll(ctx context.Context) ([]types.DeviceStatus, error) {
	var err error
	ctx, span := tracer.Start(ctx, "latest-status-of-all")
	defer span.End()

	var statuses []types.DeviceStatus
	err = c.get(ctx, c.url+"/api/v0/status?raw=true", &statuses)
	if err != nil {
		return nil, err
	}

	return statuses, nil
}

func (c *monitorClient) get(ctx context.Context, url string, result any) error {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrDeviceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status code %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	err = json.Unmarshal(respBody, result)
	if err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	return nil
}
