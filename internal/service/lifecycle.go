package service

import (
	"context"
	"fmt"
	"time"

	"biopro-irradiation/internal/models"
	"biopro-irradiation/internal/repository"

	"go.uber.org/zap"
)

// 设备校验失败消息（对外契约，勿改动文案）
const (
	MsgDeviceNotFound      = "Device not found"
	MsgDeviceNotInLocation = "Device not in current location"
	MsgDeviceAlreadyInUse  = "Device already in use"
)

// DeviceValidationError 设备校验失败（同步返回给调用方，不自动重试）
type DeviceValidationError struct {
	Message string
}

func (e *DeviceValidationError) Error() string {
	return e.Message
}

// DeviceStore 设备仓库接口（生命周期服务视角）
type DeviceStore interface {
	FindByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	UpsertFromLifecycleEvent(ctx context.Context, event *models.DeviceLifecycleEvent) error
}

// BatchStore 批次仓库接口（生命周期服务视角）
type BatchStore interface {
	CreateBatch(ctx context.Context, deviceID string, startTime time.Time, items []models.NewBatchItemInput) (*models.Batch, error)
	FindActiveBatchByDeviceID(ctx context.Context, deviceID string) (*models.Batch, error)
	FindByID(ctx context.Context, batchID int64) (*models.Batch, error)
	FindBatchItems(ctx context.Context, batchID int64) ([]models.BatchItem, error)
	CloseBatch(ctx context.Context, batchID int64, endTime time.Time, outcomes []models.BatchItemOutcome) error
}

// CompletionReconciler 批次关闭后的对账接口（见 completion.go）
type CompletionReconciler interface {
	ReconcileClosedBatch(ctx context.Context, batch *models.Batch, outcomes []models.BatchItemOutcome, performedBy string) ([]ItemFailure, error)
}

// CloseBatchResult 关闭批次的结果
// Warnings 为逐项失败列表（部分失败不阻断关闭，见 completion.go）
type CloseBatchResult struct {
	BatchID  int64
	Warnings []ItemFailure
}

// LifecycleService 批次生命周期服务
// 每台设备的状态机：NO_BATCH -> OPEN -> CLOSED；
// 同一设备同一时刻至多一个打开的批次
type LifecycleService struct {
	deviceRepo DeviceStore
	batchRepo  BatchStore
	completion CompletionReconciler
	logger     *zap.Logger
}

// NewLifecycleService 创建批次生命周期服务
func NewLifecycleService(
	deviceRepo DeviceStore,
	batchRepo BatchStore,
	completion CompletionReconciler,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		deviceRepo: deviceRepo,
		batchRepo:  batchRepo,
		completion: completion,
		logger:     logger,
	}
}

// StartBatch 扫描设备开始辐照，创建打开的批次
// 校验顺序：设备存在且激活且为辐照设备 → 地点一致 → 没有打开的批次
func (s *LifecycleService) StartBatch(ctx context.Context, deviceID, location string, items []models.NewBatchItemInput) (*models.Batch, error) {
	device, err := s.deviceRepo.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up device: %w", err)
	}

	if device == nil || !device.IsActive() || device.Category != models.DeviceCategoryIrradiator {
		return nil, &DeviceValidationError{Message: MsgDeviceNotFound}
	}

	if !device.IsAtLocation(location) {
		return nil, &DeviceValidationError{Message: MsgDeviceNotInLocation}
	}

	active, err := s.batchRepo.FindActiveBatchByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active batch: %w", err)
	}
	if active != nil {
		return nil, &DeviceValidationError{Message: MsgDeviceAlreadyInUse}
	}

	batch, err := s.batchRepo.CreateBatch(ctx, deviceID, time.Now(), items)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	s.logger.Info("Irradiation batch started",
		zap.Int64("batch_id", batch.ID),
		zap.String("device_id", deviceID),
		zap.String("location", location),
		zap.Int("item_count", len(items)),
	)

	return batch, nil
}

// CloseBatch 关闭批次，写入每项辐照结果，并触发完成对账
// 关闭本身是单一原子事务：要么全部结果写入并关闭，要么批次保持打开。
// 对账阶段的逐项失败作为 Warnings 返回，不回滚已关闭的批次。
func (s *LifecycleService) CloseBatch(ctx context.Context, batchID int64, endTime time.Time, outcomes []models.BatchItemOutcome, performedBy string) (*CloseBatchResult, error) {
	if err := s.batchRepo.CloseBatch(ctx, batchID, endTime, outcomes); err != nil {
		return nil, err
	}

	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload closed batch: %w", err)
	}
	if batch == nil {
		return nil, fmt.Errorf("closed batch disappeared: %d", batchID)
	}

	items, err := s.batchRepo.FindBatchItems(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch items: %w", err)
	}
	batch.Items = items

	warnings, err := s.completion.ReconcileClosedBatch(ctx, batch, outcomes, performedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile closed batch: %w", err)
	}

	for _, warning := range warnings {
		s.logger.Warn("Batch item reconciliation failed",
			zap.Int64("batch_id", batchID),
			zap.String("unit_number", warning.UnitNumber),
			zap.String("product_code", warning.ProductCode),
			zap.String("reason", warning.Reason),
		)
	}

	return &CloseBatchResult{
		BatchID:  batchID,
		Warnings: warnings,
	}, nil
}

// FindActiveBatch 获取设备当前打开的批次
// 没有打开的批次时返回 (nil, nil)
func (s *LifecycleService) FindActiveBatch(ctx context.Context, deviceID string) (*models.Batch, error) {
	return s.batchRepo.FindActiveBatchByDeviceID(ctx, deviceID)
}

// HandleDeviceLifecycleEvent 处理上游设备生命周期事件
// 只跟踪 IRRADIATOR 类别设备，其余类别记录日志后跳过
func (s *LifecycleService) HandleDeviceLifecycleEvent(ctx context.Context, event *models.DeviceLifecycleEvent) error {
	if event.Category != models.DeviceCategoryIrradiator {
		s.logger.Debug("Skipping non-irradiator device lifecycle event",
			zap.String("device_id", event.DeviceID),
			zap.String("category", event.Category),
		)
		return nil
	}

	if err := s.deviceRepo.UpsertFromLifecycleEvent(ctx, event); err != nil {
		return err
	}

	s.logger.Info("Device registry updated",
		zap.String("device_id", event.DeviceID),
		zap.String("location", event.Location),
		zap.String("status", event.Status),
	)

	return nil
}

// 确认仓库实现满足服务接口
var (
	_ DeviceStore = (*repository.DeviceRepository)(nil)
	_ BatchStore  = (*repository.BatchRepository)(nil)
)
