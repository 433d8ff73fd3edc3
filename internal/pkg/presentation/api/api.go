package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/damsafe/device-monitor/internal/pkg/application/monitoring"
	db "github.com/damsafe/device-monitor/internal/pkg/infrastructure/repositories/database/monitoring"
	"github.com/damsafe/device-monitor/pkg/types"
)

var tracer = otel.Tracer("device-monitor/api")

func RegisterHandlers(ctx context.Context, router *chi.Mux, log zerolog.Logger, svc monitoring.DeviceMonitor) *chi.Mux {

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Route("/api/v0", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", queryDevicesHandler(log, svc))
			r.Post("/", createDeviceHandler(log, svc))
			r.Get("/{deviceID}", getDeviceDetailsHandler(log, svc))
			r.Patch("/{deviceID}", patchDeviceHandler(log, svc))
			r.Delete("/{deviceID}", deleteDeviceHandler(log, svc))
			r.Get("/{deviceID}/status", getStatusHistoryHandler(log, svc))
		})

		r.Get("/status", getDashboardHandler(log, svc))
		r.Delete("/status", purgeStatusHandler(log, svc))
	})

	return router
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(b)
}

func statusCodeForError(err error) int {
	switch {
	case errors.Is(err, db.ErrDeviceNotFound), errors.Is(err, db.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, db.ErrDeviceNameTaken), errors.Is(err, db.ErrDuplicateObservation):
		return http.StatusConflict
	case errors.Is(err, db.ErrStorageUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func createDeviceHandler(log zerolog.Logger, svc monitoring.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-device")
		defer span.End()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("unable to read body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var req createDeviceRequest
		err = json.Unmarshal(body, &req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		device, err := svc.CreateDevice(ctx, req.Name, req.IP, req.Coil)
		if err != nil {
			log.Error().Err(err).Msg("unable to create device")
			w.WriteHeader(statusCodeForError(err))
			return
		}

		writeJSON(w, http.StatusCreated, device)
	}
}

func queryDevicesHandler(log zerolog.Logger, svc monitoring.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-devices")
		defer span.End()

		if name := r.URL.Query().Get("name"); name != "" {
			device, err := svc.GetDeviceByName(ctx, name)
			if err != nil {
				if !errors.Is(err, db.ErrDeviceNotFound) {
					log.Error().Err(err).Msg("could not fetch device by name")
				}
				w.WriteHeader(statusCodeForError(err))
				return
			}

			writeJSON(w, http.StatusOK, []types.Device{device})
			return
		}

		devices, err := svc.ListDevices(ctx)
		if err != nil {
			log.Error().Err(err).Msg("unable to fetch all devices")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, devices)
	}
}

func getDeviceDetailsHandler(log zerolog.Logger, svc monitoring.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-device")
		defer span.End()

		deviceID, err := deviceIDFromRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		device, err := svc.GetDevice(ctx, deviceID)
		if err != nil {
			if !errors.Is(err, db.ErrDeviceNotFound) {
				log.Error().Err(err).Msg("could not fetch device")
			}
			w.WriteHeader(statusCodeForError(err))
			return
		}

		writeJSON(w, http.StatusOK, device)
	}
}

func patchDeviceHandler(log zerolog.Logger, svc monitoring.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "patch-device")
		defer span.End()

		deviceID, err := deviceIDFromRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var req patchDeviceRequest
		err = json.Unmarshal(body, &req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		device, err := svc.UpdateDevice(ctx, deviceID, req.IP, req.Coil)
		if err != nil {
			log.Error().Err(err).Uint("deviceID", deviceID).Msg("unable to update device")
			w.WriteHeader(statusCodeForError(err))
			return
		}

		writeJSON(w, http.StatusOK, device)
	}
}

func deleteDeviceHandler(log zerolog.Logger, svc monitoring.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-device")
		defer span.End()

		deviceID, err := deviceIDFromRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		err = svc.RemoveDevice(ctx, deviceID)
		if err != nil {
			if !errors.Is(err, db.ErrDeviceNotFound) {
				log.Error().Err(err).Uint("deviceID", deviceID).Msg("unable to remove device")
			}
			w.WriteHeader(statusCodeForError(err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getStatusHistoryHandler(log zerolog.Logger, svc monitoring.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-status-history")
		defer span.End()

		deviceID, err := deviceIDFromRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		from, err := timeFromQuery(r, "from")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		to, err := timeFromQuery(r, "to")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// the device must exist even when it has no history
		_, err = svc.GetDevice(ctx, deviceID)
		if err != nil {
			w.WriteHeader(statusCodeForError(err))
			return
		}

		history, err := svc.StatusHistory(ctx, deviceID, from, to)
		if err != nil {
			log.Error().Err(err).Uint("deviceID", deviceID).Msg("unable to fetch status history")
			w.WriteHeader(statusCodeForError(err))
			return
		}

		writeJSON(w, http.StatusOK, history)
	}
}

func getDashboardHandler(log zerolog.Logger, svc monitoring.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-dashboard")
		defer span.End()

		var statuses []types.DeviceStatus
		var err error

		if r.URL.Query().Get("onlyErrors") == "true" {
			statuses, err = svc.DevicesWithError(ctx)
		} else {
			statuses, err = svc.CurrentStatus(ctx)
		}
		if err != nil {
			log.Error().Err(err).Msg("unable to fetch current status")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if r.URL.Query().Get("raw") == "true" {
			writeJSON(w, http.StatusOK, statuses)
			return
		}

		now := time.Now().UTC()

		rows := make([]dashboardRow, 0, len(statuses))
		for _, s := range statuses {
			rows = append(rows, newDashboardRow(s, now))
		}

		writeJSON(w, http.StatusOK, rows)
	}
}

func purgeStatusHandler(log zerolog.Logger, svc monitoring.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "purge-status")
		defer span.End()

		cutoff, err := timeFromQuery(r, "olderThan")
		if err != nil || cutoff.IsZero() {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		purged, err := svc.PurgeStatuses(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("unable to purge observations")
			w.WriteHeader(statusCodeForError(err))
			return
		}

		writeJSON(w, http.StatusOK, purgeResponse{Purged: purged})
	}
}

func deviceIDFromRequest(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "deviceID"), 10, 32)
	if err != nil {
		return 0, err
	}

	return uint(id), nil
}

func timeFromQuery(r *http.Request, param string) (time.Time, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339, value)
}
