package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/damsafe/device-monitor/pkg/types"
)

type statusRow struct {
	ID     uint
	Name   string
	IP     string
	Coil   *int
	Time   *time.Time
	Status *bool
	Error  *string
}

func (r statusRow) toDeviceStatus() types.DeviceStatus {
	ds := types.DeviceStatus{
		Device: types.Device{
			ID:   r.ID,
			Name: r.Name,
			IP:   r.IP,
			Coil: r.Coil,
		},
	}

	if r.Time != nil && r.Status != nil {
		ds.Latest = &types.StatusObservation{
			DeviceID: r.ID,
			Time:     *r.Time,
			Status:   *r.Status,
			Error:    r.Error,
		}
	}

	return ds
}

const currentStatusQuery = `
SELECT d.id, d.name, d.ip, d.coil, s.time, s.status, s.error
FROM devices d
LEFT JOIN device_status s
  ON s.device_id = d.id
 AND s.time = (SELECT MAX(time) FROM device_status WHERE device_id = d.id)
`

// CurrentStatusOfAll joins every device with its most recent observation
// in a single query, so the result is a consistent snapshot even while
// new observations are being recorded.
func (s *store) CurrentStatusOfAll(ctx context.Context) ([]types.DeviceStatus, error) {
	var rows []statusRow

	result := s.db.WithContext(ctx).
		Raw(currentStatusQuery + "ORDER BY d.id ASC").
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorageUnavailable, result.Error.Error())
	}

	statuses := make([]types.DeviceStatus, 0, len(rows))
	for _, r := range rows {
		statuses = append(statuses, r.toDeviceStatus())
	}

	return statuses, nil
}

func (s *store) DevicesWithError(ctx context.Context) ([]types.DeviceStatus, error) {
	var rows []statusRow

	result := s.db.WithContext(ctx).
		Raw(currentStatusQuery+"WHERE s.status = ? ORDER BY d.id ASC", false).
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorageUnavailable, result.Error.Error())
	}

	statuses := make([]types.DeviceStatus, 0, len(rows))
	for _, r := range rows {
		statuses = append(statuses, r.toDeviceStatus())
	}

	return statuses, nil
}
