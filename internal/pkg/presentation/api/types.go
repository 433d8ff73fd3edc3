package api

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/damsafe/device-monitor/pkg/types"
)

type createDeviceRequest struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
	Coil *int   `json:"coil,omitempty"`
}

type patchDeviceRequest struct {
	IP   *string `json:"ip,omitempty"`
	Coil *int    `json:"coil,omitempty"`
}

type purgeResponse struct {
	Purged int64 `json:"purged"`
}

// dashboardRow is one line on the status board, formatted for people
// rather than machines.
type dashboardRow struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Status   string `json:"status"`
	Error    string `json:"error"`
	LastSeen string `json:"lastSeen"`
}

func newDashboardRow(ds types.DeviceStatus, now time.Time) dashboardRow {
	row := dashboardRow{
		ID:       ds.Device.ID,
		Name:     ds.Device.Name,
		IP:       ds.Device.IP,
		Status:   "...",
		Error:    "none",
		LastSeen: "never",
	}

	if ds.Latest != nil {
		if ds.Latest.Status {
			row.Status = "up"
		} else {
			row.Status = "down"
		}

		if ds.Latest.Error != nil {
			row.Error = *ds.Latest.Error
		}

		row.LastSeen = humanize.RelTime(ds.Latest.Time, now, "ago", "from now")
	}

	return row
}
