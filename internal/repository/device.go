package repository

import (
	"context"
	"database/sql"
	"fmt"

	"biopro-irradiation/internal/models"

	"go.uber.org/zap"
)

// DeviceRepository 辐照设备仓库
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

// FindByDeviceID 根据设备ID获取设备
// 设备不存在时返回 (nil, nil)
func (r *DeviceRepository) FindByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `
		SELECT device_id, location, category, status, created_at, updated_at
		FROM devices
		WHERE device_id = $1
	`

	var device models.Device
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&device.DeviceID,
		&device.Location,
		&device.Category,
		&device.Status,
		&device.CreatedAt,
		&device.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query device: %w", err)
	}

	return &device, nil
}

// FindActiveDeviceAtLocation 获取指定地点处于激活状态的设备
// 不存在、非激活或地点不符时返回 (nil, nil)
func (r *DeviceRepository) FindActiveDeviceAtLocation(ctx context.Context, deviceID, location string) (*models.Device, error) {
	query := `
		SELECT device_id, location, category, status, created_at, updated_at
		FROM devices
		WHERE device_id = $1 AND location = $2 AND status = $3
	`

	var device models.Device
	err := r.db.QueryRowContext(ctx, query, deviceID, location, models.DeviceStatusActive).Scan(
		&device.DeviceID,
		&device.Location,
		&device.Category,
		&device.Status,
		&device.CreatedAt,
		&device.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query active device: %w", err)
	}

	return &device, nil
}

// UpsertFromLifecycleEvent 根据设备生命周期事件创建或覆盖设备
// 纯 upsert（以 device_id 为键），at-least-once 投递下天然幂等
func (r *DeviceRepository) UpsertFromLifecycleEvent(ctx context.Context, event *models.DeviceLifecycleEvent) error {
	query := `
		INSERT INTO devices (device_id, location, category, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (device_id) DO UPDATE
		SET location = EXCLUDED.location,
		    status = EXCLUDED.status,
		    updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, event.DeviceID, event.Location, event.Category, event.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	r.logger.Debug("Device upserted from lifecycle event",
		zap.String("device_id", event.DeviceID),
		zap.String("location", event.Location),
		zap.String("status", event.Status),
	)

	return nil
}
