package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damsafe/device-monitor/pkg/types"
	"gorm.io/gorm"
)

func (s *store) RecordStatus(ctx context.Context, deviceID uint, observedAt time.Time, status bool, errText *string) error {
	observation := StatusObservation{
		DeviceID: deviceID,
		Time:     normalizeTime(observedAt),
		Status:   status,
		Error:    errText,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		result := tx.Model(&Device{}).Where("id = ?", deviceID).Count(&count)
		if result.Error != nil {
			return result.Error
		}
		if count == 0 {
			return ErrUnknownDevice
		}

		return tx.Create(&observation).Error
	})

	if err != nil {
		if errors.Is(err, ErrUnknownDevice) || isForeignKeyViolation(err) {
			return ErrUnknownDevice
		}
		if isUniqueViolation(err) {
			return ErrDuplicateObservation
		}
		return fmt.Errorf("%w: %s", ErrStorageUnavailable, err.Error())
	}

	return nil
}

func (s *store) LatestStatus(ctx context.Context, deviceID uint) (types.StatusObservation, error) {
	var observation StatusObservation

	result := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("time desc").
		First(&observation)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.StatusObservation{}, ErrNoObservations
		}
		return types.StatusObservation{}, fmt.Errorf("%w: %s", ErrStorageUnavailable, result.Error.Error())
	}

	return observation.ToType(), nil
}

func (s *store) StatusHistory(ctx context.Context, deviceID uint, from, to time.Time) ([]types.StatusObservation, error) {
	query := s.db.WithContext(ctx).Where("device_id = ?", deviceID)

	if !from.IsZero() {
		query = query.Where("time >= ?", normalizeTime(from))
	}
	if !to.IsZero() {
		query = query.Where("time <= ?", normalizeTime(to))
	}

	var observations []StatusObservation

	result := query.Order("time asc").Find(&observations)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorageUnavailable, result.Error.Error())
	}

	history := make([]types.StatusObservation, 0, len(observations))
	for _, o := range observations {
		history = append(history, o.ToType())
	}

	return history, nil
}

func (s *store) PurgeStatusesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("time < ?", normalizeTime(cutoff)).
		Delete(&StatusObservation{})

	if result.Error != nil {
		return 0, fmt.Errorf("%w: %s", ErrStorageUnavailable, result.Error.Error())
	}

	return result.RowsAffected, nil
}
