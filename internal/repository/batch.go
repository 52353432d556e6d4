package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"biopro-irradiation/internal/models"

	"go.uber.org/zap"
)

// ErrBatchNotOpen 批次不存在或已关闭（closeBatch 的原子前置条件不满足）
var ErrBatchNotOpen = fmt.Errorf("batch not found or already closed")

// BatchRepository 辐照批次仓库
type BatchRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBatchRepository 创建批次仓库
func NewBatchRepository(db *sql.DB, logger *zap.Logger) *BatchRepository {
	return &BatchRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch 创建批次并写入批次项（同一事务）
func (r *BatchRepository) CreateBatch(ctx context.Context, deviceID string, startTime time.Time, items []models.NewBatchItemInput) (*models.Batch, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var batchID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO batches (device_id, start_time, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id
	`, deviceID, startTime).Scan(&batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert batch: %w", err)
	}

	batch := &models.Batch{
		ID:        batchID,
		DeviceID:  deviceID,
		StartTime: startTime,
	}

	for _, item := range items {
		var itemID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO batch_items (batch_id, unit_number, product_code, lot_number, product_family, expiration_date)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, batchID, item.UnitNumber, item.ProductCode, item.LotNumber, item.ProductFamily, item.ExpirationDate).Scan(&itemID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert batch item: %w", err)
		}

		batch.Items = append(batch.Items, models.BatchItem{
			ID:             itemID,
			BatchID:        batchID,
			UnitNumber:     item.UnitNumber,
			ProductCode:    item.ProductCode,
			LotNumber:      item.LotNumber,
			ProductFamily:  item.ProductFamily,
			ExpirationDate: item.ExpirationDate,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	r.logger.Info("Batch created",
		zap.Int64("batch_id", batchID),
		zap.String("device_id", deviceID),
		zap.Int("item_count", len(items)),
	)

	return batch, nil
}

// FindActiveBatchByDeviceID 获取设备当前打开的批次（end_time 为空）
// 不存在时返回 (nil, nil)
func (r *BatchRepository) FindActiveBatchByDeviceID(ctx context.Context, deviceID string) (*models.Batch, error) {
	query := `
		SELECT id, device_id, start_time, end_time, created_at, updated_at
		FROM batches
		WHERE device_id = $1 AND end_time IS NULL
	`

	batch, err := r.scanBatch(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil || batch == nil {
		return batch, err
	}

	items, err := r.FindBatchItems(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	batch.Items = items

	return batch, nil
}

// FindByID 根据批次ID获取批次
// 不存在时返回 (nil, nil)
func (r *BatchRepository) FindByID(ctx context.Context, batchID int64) (*models.Batch, error) {
	query := `
		SELECT id, device_id, start_time, end_time, created_at, updated_at
		FROM batches
		WHERE id = $1
	`

	return r.scanBatch(r.db.QueryRowContext(ctx, query, batchID))
}

// FindBatchItems 获取批次的全部批次项
func (r *BatchRepository) FindBatchItems(ctx context.Context, batchID int64) ([]models.BatchItem, error) {
	query := `
		SELECT id, batch_id, unit_number, product_code, lot_number, product_family,
		       new_product_code, expiration_date, irradiated
		FROM batch_items
		WHERE batch_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch items: %w", err)
	}
	defer rows.Close()

	var items []models.BatchItem
	for rows.Next() {
		item, err := scanBatchItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate batch items: %w", err)
	}

	return items, nil
}

// FindBatchItem 获取批次中指定 unit/product 的批次项
// 不存在时返回 (nil, nil)
func (r *BatchRepository) FindBatchItem(ctx context.Context, batchID int64, unitNumber, productCode string) (*models.BatchItem, error) {
	query := `
		SELECT id, batch_id, unit_number, product_code, lot_number, product_family,
		       new_product_code, expiration_date, irradiated
		FROM batch_items
		WHERE batch_id = $1 AND unit_number = $2 AND product_code = $3
	`

	item, err := scanBatchItem(r.db.QueryRowContext(ctx, query, batchID, unitNumber, productCode))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

// CloseBatch 关闭批次并写入每项辐照结果（单一原子事务）
// 前置条件：批次存在且 end_time 为空；任何一项结果写入失败都回滚整个关闭操作
func (r *BatchRepository) CloseBatch(ctx context.Context, batchID int64, endTime time.Time, outcomes []models.BatchItemOutcome) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE batches
		SET end_time = $2, updated_at = NOW()
		WHERE id = $1 AND end_time IS NULL
	`, batchID, endTime)
	if err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrBatchNotOpen
	}

	for _, outcome := range outcomes {
		result, err := tx.ExecContext(ctx, `
			UPDATE batch_items
			SET irradiated = $4
			WHERE batch_id = $1 AND unit_number = $2 AND product_code = $3
		`, batchID, outcome.UnitNumber, outcome.ProductCode, outcome.Irradiated)
		if err != nil {
			return fmt.Errorf("failed to update batch item outcome: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("batch item not found: %s/%s", outcome.UnitNumber, outcome.ProductCode)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch close: %w", err)
	}

	r.logger.Info("Batch closed",
		zap.Int64("batch_id", batchID),
		zap.Time("end_time", endTime),
		zap.Int("outcome_count", len(outcomes)),
	)

	return nil
}

// UpdateBatchItemNewProductCode 写入辐照后的新产品码
func (r *BatchRepository) UpdateBatchItemNewProductCode(ctx context.Context, batchID int64, unitNumber, productCode, newProductCode string) error {
	query := `
		UPDATE batch_items
		SET new_product_code = $4
		WHERE batch_id = $1 AND unit_number = $2 AND product_code = $3
	`

	_, err := r.db.ExecContext(ctx, query, batchID, unitNumber, productCode, newProductCode)
	if err != nil {
		return fmt.Errorf("failed to update batch item new product code: %w", err)
	}

	return nil
}

// IsUnitAlreadyIrradiated unit/product 是否已在某个已关闭批次中完成辐照
func (r *BatchRepository) IsUnitAlreadyIrradiated(ctx context.Context, unitNumber, productCode string) (bool, error) {
	query := `
		SELECT COUNT(*) > 0
		FROM batch_items bi
		JOIN batches b ON bi.batch_id = b.id
		WHERE bi.unit_number = $1 AND b.end_time IS NOT NULL AND bi.new_product_code = $2
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, unitNumber, productCode).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query already irradiated: %w", err)
	}

	return exists, nil
}

// IsUnitBeingIrradiated unit/product 是否在某个打开的批次中
func (r *BatchRepository) IsUnitBeingIrradiated(ctx context.Context, unitNumber, productCode string) (bool, error) {
	query := `
		SELECT COUNT(*) > 0
		FROM batch_items bi
		JOIN batches b ON bi.batch_id = b.id
		WHERE bi.unit_number = $1 AND b.end_time IS NULL AND bi.product_code = $2
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, unitNumber, productCode).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query being irradiated: %w", err)
	}

	return exists, nil
}

// FindLatestBatchWithItem 获取包含指定 unit/product 的最新批次（按 start_time 倒序）
// 不存在时返回 (nil, nil)
func (r *BatchRepository) FindLatestBatchWithItem(ctx context.Context, unitNumber, productCode string) (*models.Batch, error) {
	query := `
		SELECT b.id, b.device_id, b.start_time, b.end_time, b.created_at, b.updated_at
		FROM batch_items bi
		JOIN batches b ON bi.batch_id = b.id
		WHERE bi.unit_number = $1 AND bi.product_code = $2
		ORDER BY b.start_time DESC
		LIMIT 1
	`

	return r.scanBatch(r.db.QueryRowContext(ctx, query, unitNumber, productCode))
}

// rowScanner database/sql 的 Row 与 Rows 公共扫描接口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *BatchRepository) scanBatch(row rowScanner) (*models.Batch, error) {
	var batch models.Batch
	var endTime sql.NullTime

	err := row.Scan(
		&batch.ID,
		&batch.DeviceID,
		&batch.StartTime,
		&endTime,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}

	if endTime.Valid {
		batch.EndTime = &endTime.Time
	}

	return &batch, nil
}

func scanBatchItem(row rowScanner) (*models.BatchItem, error) {
	var item models.BatchItem
	var newProductCode sql.NullString
	var expirationDate sql.NullTime
	var irradiated sql.NullBool

	err := row.Scan(
		&item.ID,
		&item.BatchID,
		&item.UnitNumber,
		&item.ProductCode,
		&item.LotNumber,
		&item.ProductFamily,
		&newProductCode,
		&expirationDate,
		&irradiated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan batch item: %w", err)
	}

	if newProductCode.Valid {
		item.NewProductCode = &newProductCode.String
	}
	if expirationDate.Valid {
		item.ExpirationDate = &expirationDate.Time
	}
	if irradiated.Valid {
		item.Irradiated = &irradiated.Bool
	}

	return &item, nil
}
