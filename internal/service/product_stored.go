package service

import (
	"context"
	"fmt"
	"time"

	"biopro-irradiation/internal/evaluator"
	"biopro-irradiation/internal/models"
	"biopro-irradiation/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchContextFinder 批次上下文查询接口（隔离引擎视角）
type BatchContextFinder interface {
	FindLatestBatchWithItem(ctx context.Context, unitNumber, productCode string) (*models.Batch, error)
	FindBatchItem(ctx context.Context, batchID int64, unitNumber, productCode string) (*models.BatchItem, error)
}

// StorageEventLedger 幂等台账接口（隔离引擎视角）
type StorageEventLedger interface {
	FindRecord(ctx context.Context, unitNumber, productCode, deviceUse string, batchID int64) (*models.StorageEventRecord, error)
	MarkProcessed(ctx context.Context, unitNumber, productCode, deviceUse string, batchID int64, storageTime time.Time) (bool, error)
}

// OutOfStorageRule 超储存时限规则接口（evaluator 实现）
type OutOfStorageRule interface {
	Evaluate(ctx context.Context, batchStartTime, storageTime time.Time, productFamily string) (*evaluator.OutOfStorageResult, error)
}

// QuarantinePublisher 隔离事件发布接口
type QuarantinePublisher interface {
	PublishQuarantine(ctx context.Context, event *models.QuarantineProduct) error
}

// ProductStoredService 超储存时限隔离引擎
// 消费 "product stored" 事件：找到 unit/product 最近的已关闭批次，比较
// storageTime - startTime 与配置阈值，超出则发布隔离事件；台账保证同一
// 处理发生（键含批次）至多触发一次隔离。
//
// 错误路径不标记台账：基础设施瞬时失败向上传播，由传输层重投递。
type ProductStoredService struct {
	batches   BatchContextFinder
	ledger    StorageEventLedger
	rule      OutOfStorageRule
	publisher QuarantinePublisher
	logger    *zap.Logger
}

// NewProductStoredService 创建隔离引擎
func NewProductStoredService(
	batches BatchContextFinder,
	ledger StorageEventLedger,
	rule OutOfStorageRule,
	publisher QuarantinePublisher,
	logger *zap.Logger,
) *ProductStoredService {
	return &ProductStoredService{
		batches:   batches,
		ledger:    ledger,
		rule:      rule,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleProductStored 处理一条 "product stored" 事件
func (s *ProductStoredService) HandleProductStored(ctx context.Context, event *models.ProductStoredEvent) error {
	// 1. 解析批次上下文：unit/product 最近的批次
	batch, err := s.batches.FindLatestBatchWithItem(ctx, event.UnitNumber, event.ProductCode)
	if err != nil {
		return fmt.Errorf("failed to resolve batch context: %w", err)
	}
	if batch == nil {
		// 没有批次上下文，无可校验
		s.logger.Debug("No batch context for product stored event",
			zap.String("unit_number", event.UnitNumber),
			zap.String("product_code", event.ProductCode),
		)
		return nil
	}
	if batch.IsActive() {
		// 批次尚未关闭，这条存储事件与辐照往返无关，不处理也不标记
		s.logger.Debug("Batch still open, skipping product stored event",
			zap.Int64("batch_id", batch.ID),
			zap.String("unit_number", event.UnitNumber),
		)
		return nil
	}

	// 2. 幂等防线：同一键的重复投递记日志后结束
	record, err := s.ledger.FindRecord(ctx, event.UnitNumber, event.ProductCode, event.DeviceUse, batch.ID)
	if err != nil {
		return fmt.Errorf("failed to read storage event ledger: %w", err)
	}
	if record != nil && record.Processed {
		s.logger.Info("Product stored event already processed",
			zap.String("unit_number", event.UnitNumber),
			zap.String("product_code", event.ProductCode),
			zap.String("device_use", event.DeviceUse),
			zap.Int64("batch_id", batch.ID),
		)
		return nil
	}

	// 3. 读取批次项（产品族决定阈值键）
	item, err := s.batches.FindBatchItem(ctx, batch.ID, event.UnitNumber, event.ProductCode)
	if err != nil {
		return fmt.Errorf("failed to load batch item: %w", err)
	}
	if item == nil {
		return fmt.Errorf("batch item not found for %s/%s in batch %d", event.UnitNumber, event.ProductCode, batch.ID)
	}

	// 4. 判定是否超出离储时限
	result, err := s.rule.Evaluate(ctx, batch.StartTime, event.StorageTime, item.ProductFamily)
	if err != nil {
		return err
	}

	if result.Exceeded {
		quarantine := &models.QuarantineProduct{
			EventID: uuid.New().String(),
			Products: []models.QuarantineProductInput{
				{UnitNumber: event.UnitNumber, ProductCode: event.ProductCode},
			},
			TriggeredBy: models.TriggeredByIrradiationSystem,
			ReasonKey:   models.ReasonOutOfStorageTimeExceeded,
			PerformedBy: event.PerformedBy,
		}

		// 发布失败直接传播：不标记台账，等待重投递，绝不丢弃违规
		if err := s.publisher.PublishQuarantine(ctx, quarantine); err != nil {
			return fmt.Errorf("failed to publish quarantine event: %w", err)
		}

		s.logger.Info("Quarantine triggered for out-of-storage time breach",
			zap.String("unit_number", event.UnitNumber),
			zap.String("product_code", event.ProductCode),
			zap.Duration("elapsed", result.Elapsed),
			zap.Duration("threshold", result.Threshold),
		)
	} else {
		s.logger.Debug("Out-of-storage time within limit",
			zap.String("unit_number", event.UnitNumber),
			zap.String("product_code", event.ProductCode),
			zap.Duration("elapsed", result.Elapsed),
			zap.Duration("threshold", result.Threshold),
		)
	}

	// 5. 无论是否违规都标记已处理；条件更新保证并发下只有一个投递胜出
	marked, err := s.ledger.MarkProcessed(ctx, event.UnitNumber, event.ProductCode, event.DeviceUse, batch.ID, event.StorageTime)
	if err != nil {
		return fmt.Errorf("failed to mark storage event as processed: %w", err)
	}
	if !marked {
		s.logger.Info("Product stored event already processed",
			zap.String("unit_number", event.UnitNumber),
			zap.String("product_code", event.ProductCode),
			zap.String("device_use", event.DeviceUse),
			zap.Int64("batch_id", batch.ID),
		)
	}

	return nil
}

// 确认仓库与判定器实现满足服务接口
var (
	_ BatchContextFinder = (*repository.BatchRepository)(nil)
	_ StorageEventLedger = (*repository.StorageEventRepository)(nil)
	_ OutOfStorageRule   = (*evaluator.OutOfStorageEvaluator)(nil)
)
