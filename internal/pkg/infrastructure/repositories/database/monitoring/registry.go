package monitoring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/damsafe/device-monitor/pkg/types"
	"gorm.io/gorm"
)

func (s *store) RegisterDevice(ctx context.Context, name, ip string, coil *int) (types.Device, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Device{}, fmt.Errorf("device name must not be empty")
	}

	device := Device{
		Name: name,
		IP:   ip,
		Coil: coil,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		result := tx.Model(&Device{}).Where("name = ?", name).Count(&count)
		if result.Error != nil {
			return result.Error
		}
		if count > 0 {
			return ErrDeviceNameTaken
		}

		return tx.Create(&device).Error
	})

	if err != nil {
		if errors.Is(err, ErrDeviceNameTaken) || isUniqueViolation(err) {
			return types.Device{}, ErrDeviceNameTaken
		}
		return types.Device{}, fmt.Errorf("%w: %s", ErrStorageUnavailable, err.Error())
	}

	return device.ToType(), nil
}

func (s *store) UpdateDevice(ctx context.Context, deviceID uint, ip *string, coil *int) (types.Device, error) {
	var device Device

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.First(&device, deviceID)
		if result.Error != nil {
			return result.Error
		}

		if ip != nil {
			device.IP = *ip
		}
		if coil != nil {
			device.Coil = coil
		}

		return tx.Save(&device).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Device{}, ErrDeviceNotFound
		}
		return types.Device{}, fmt.Errorf("%w: %s", ErrStorageUnavailable, err.Error())
	}

	return device.ToType(), nil
}

func (s *store) RemoveDevice(ctx context.Context, deviceID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// observations go first, the foreign key forbids orphans
		result := tx.Where("device_id = ?", deviceID).Delete(&StatusObservation{})
		if result.Error != nil {
			return result.Error
		}

		result = tx.Delete(&Device{}, deviceID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDeviceNotFound
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("%w: %s", ErrStorageUnavailable, err.Error())
	}

	return nil
}

func (s *store) GetDevice(ctx context.Context, deviceID uint) (types.Device, error) {
	var device Device

	result := s.db.WithContext(ctx).First(&device, deviceID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.Device{}, ErrDeviceNotFound
		}
		return types.Device{}, fmt.Errorf("%w: %s", ErrStorageUnavailable, result.Error.Error())
	}

	return device.ToType(), nil
}

func (s *store) GetDeviceByName(ctx context.Context, name string) (types.Device, error) {
	var device Device

	result := s.db.WithContext(ctx).Where("name = ?", name).First(&device)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.Device{}, ErrDeviceNotFound
		}
		return types.Device{}, fmt.Errorf("%w: %s", ErrStorageUnavailable, result.Error.Error())
	}

	return device.ToType(), nil
}

func (s *store) GetDevices(ctx context.Context) ([]types.Device, error) {
	var devices []Device

	result := s.db.WithContext(ctx).Order("id asc").Find(&devices)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorageUnavailable, result.Error.Error())
	}

	list := make([]types.Device, 0, len(devices))
	for _, d := range devices {
		list = append(list, d.ToType())
	}

	return list, nil
}
