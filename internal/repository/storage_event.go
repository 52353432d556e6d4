package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"biopro-irradiation/internal/models"

	"go.uber.org/zap"
)

// StorageEventRepository 存储事件幂等台账仓库
// 唯一键 (unit_number, product_code, device_use, batch_id)；记录只插入、只把
// processed 翻到 true，从不删除。MarkProcessed 使用条件更新关闭并发重复投递
// 同时观察到 processed = false 的竞态（见 storage_event_records 唯一索引）。
type StorageEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStorageEventRepository 创建存储事件台账仓库
func NewStorageEventRepository(db *sql.DB, logger *zap.Logger) *StorageEventRepository {
	return &StorageEventRepository{
		db:     db,
		logger: logger,
	}
}

// FindRecord 查询指定键的台账记录
// 不存在时返回 (nil, nil)
func (r *StorageEventRepository) FindRecord(ctx context.Context, unitNumber, productCode, deviceUse string, batchID int64) (*models.StorageEventRecord, error) {
	query := `
		SELECT id, unit_number, product_code, device_use, batch_id, processed, storage_time, created_at, updated_at
		FROM storage_event_records
		WHERE unit_number = $1 AND product_code = $2 AND device_use = $3 AND batch_id = $4
	`

	var record models.StorageEventRecord
	err := r.db.QueryRowContext(ctx, query, unitNumber, productCode, deviceUse, batchID).Scan(
		&record.ID,
		&record.UnitNumber,
		&record.ProductCode,
		&record.DeviceUse,
		&record.BatchID,
		&record.Processed,
		&record.StorageTime,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query storage event record: %w", err)
	}

	return &record, nil
}

// MarkProcessed 将指定键标记为已处理（单条条件语句）
// 首次出现直接插入 processed = true；已存在且 processed = false 时翻转；
// 已处理过的键不再更新，返回 false。两个并发调用至多一个返回 true。
func (r *StorageEventRepository) MarkProcessed(ctx context.Context, unitNumber, productCode, deviceUse string, batchID int64, storageTime time.Time) (bool, error) {
	query := `
		INSERT INTO storage_event_records (unit_number, product_code, device_use, batch_id, processed, storage_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NOW(), NOW())
		ON CONFLICT (unit_number, product_code, device_use, batch_id) DO UPDATE
		SET processed = TRUE,
		    storage_time = EXCLUDED.storage_time,
		    updated_at = NOW()
		WHERE storage_event_records.processed = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, unitNumber, productCode, deviceUse, batchID, storageTime)
	if err != nil {
		return false, fmt.Errorf("failed to mark storage event as processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		r.logger.Debug("Storage event already marked as processed",
			zap.String("unit_number", unitNumber),
			zap.String("product_code", productCode),
			zap.String("device_use", deviceUse),
			zap.Int64("batch_id", batchID),
		)
		return false, nil
	}

	return true, nil
}
