package service

import (
	"context"
	"fmt"
	"time"

	"biopro-irradiation/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeterminationStore 产品判定规则接口（完成对账视角）
type DeterminationStore interface {
	FindBySourceProductCodes(ctx context.Context, sourceProductCodes []string) (map[string]models.ProductDetermination, error)
}

// ConfigurationStore 配置表接口（完成对账视角）
type ConfigurationStore interface {
	GetIntValue(ctx context.Context, key string, defaultValue int) (int, error)
}

// ItemUpdater 批次项更新接口（批次仓库实现）
type ItemUpdater interface {
	UpdateBatchItemNewProductCode(ctx context.Context, batchID int64, unitNumber, productCode, newProductCode string) error
}

// EventPublisher 出站事件发布接口（kafka publisher 实现）
type EventPublisher interface {
	PublishQuarantine(ctx context.Context, event *models.QuarantineProduct) error
	PublishProductModified(ctx context.Context, event *models.ProductModified) error
}

// ItemFailure 对账阶段的单项失败（作为警告上报，不阻断其他项）
type ItemFailure struct {
	UnitNumber  string
	ProductCode string
	Reason      string
}

// CompletionService 批次完成对账服务
// 批次关闭后把批次项分成已辐照/未辐照两组：已辐照项换产品码、收紧有效期并
// 发布 ProductModified；未辐照项汇总为一条 IRRADIATION_INCOMPLETE 隔离事件。
// 各项相互独立，单项失败记入警告列表，其余照常处理。
type CompletionService struct {
	items          ItemUpdater
	determinations DeterminationStore
	configs        ConfigurationStore
	devices        DeviceStore
	publisher      EventPublisher
	logger         *zap.Logger

	defaultExpirationDays int
}

// NewCompletionService 创建批次完成对账服务
func NewCompletionService(
	items ItemUpdater,
	determinations DeterminationStore,
	configs ConfigurationStore,
	devices DeviceStore,
	publisher EventPublisher,
	defaultExpirationDays int,
	logger *zap.Logger,
) *CompletionService {
	return &CompletionService{
		items:                 items,
		determinations:        determinations,
		configs:               configs,
		devices:               devices,
		publisher:             publisher,
		defaultExpirationDays: defaultExpirationDays,
		logger:                logger,
	}
}

// ReconcileClosedBatch 对刚关闭的批次做完成对账
func (s *CompletionService) ReconcileClosedBatch(ctx context.Context, batch *models.Batch, outcomes []models.BatchItemOutcome, performedBy string) ([]ItemFailure, error) {
	itemsByKey := make(map[string]*models.BatchItem, len(batch.Items))
	for i := range batch.Items {
		item := &batch.Items[i]
		itemsByKey[item.UnitNumber+"/"+item.ProductCode] = item
	}

	var irradiated, nonIrradiated []models.BatchItemOutcome
	for _, outcome := range outcomes {
		if outcome.Irradiated {
			irradiated = append(irradiated, outcome)
		} else {
			nonIrradiated = append(nonIrradiated, outcome)
		}
	}

	location := s.deviceLocation(ctx, batch.DeviceID)

	var warnings []ItemFailure
	warnings = append(warnings, s.processIrradiatedItems(ctx, batch, irradiated, itemsByKey, location)...)
	warnings = append(warnings, s.publishQuarantineForNonIrradiated(ctx, nonIrradiated, performedBy)...)

	return warnings, nil
}

// processIrradiatedItems 处理已辐照项：换产品码、收紧有效期、发布 ProductModified
func (s *CompletionService) processIrradiatedItems(
	ctx context.Context,
	batch *models.Batch,
	irradiated []models.BatchItemOutcome,
	itemsByKey map[string]*models.BatchItem,
	location string,
) []ItemFailure {
	if len(irradiated) == 0 {
		return nil
	}

	distinctCodes := make([]string, 0, len(irradiated))
	seen := make(map[string]bool)
	for _, outcome := range irradiated {
		if !seen[outcome.ProductCode] {
			seen[outcome.ProductCode] = true
			distinctCodes = append(distinctCodes, outcome.ProductCode)
		}
	}

	determinations, err := s.determinations.FindBySourceProductCodes(ctx, distinctCodes)
	if err != nil {
		// 判定规则整体不可读时所有已辐照项都失败，但不阻断未辐照项的隔离
		warnings := make([]ItemFailure, 0, len(irradiated))
		for _, outcome := range irradiated {
			warnings = append(warnings, ItemFailure{
				UnitNumber:  outcome.UnitNumber,
				ProductCode: outcome.ProductCode,
				Reason:      fmt.Sprintf("failed to load product determinations: %v", err),
			})
		}
		return warnings
	}

	var warnings []ItemFailure
	for _, outcome := range irradiated {
		if failure := s.processIrradiatedItem(ctx, batch, outcome, determinations, itemsByKey, location); failure != nil {
			warnings = append(warnings, *failure)
		}
	}

	return warnings
}

func (s *CompletionService) processIrradiatedItem(
	ctx context.Context,
	batch *models.Batch,
	outcome models.BatchItemOutcome,
	determinations map[string]models.ProductDetermination,
	itemsByKey map[string]*models.BatchItem,
	location string,
) *ItemFailure {
	determination, ok := determinations[outcome.ProductCode]
	if !ok {
		return &ItemFailure{
			UnitNumber:  outcome.UnitNumber,
			ProductCode: outcome.ProductCode,
			Reason:      fmt.Sprintf("no product determination found for: %s", outcome.ProductCode),
		}
	}

	item, ok := itemsByKey[outcome.UnitNumber+"/"+outcome.ProductCode]
	if !ok {
		return &ItemFailure{
			UnitNumber:  outcome.UnitNumber,
			ProductCode: outcome.ProductCode,
			Reason:      "batch item not found in closed batch",
		}
	}

	if err := s.items.UpdateBatchItemNewProductCode(ctx, batch.ID, outcome.UnitNumber, outcome.ProductCode, determination.TargetProductCode); err != nil {
		return &ItemFailure{
			UnitNumber:  outcome.UnitNumber,
			ProductCode: outcome.ProductCode,
			Reason:      fmt.Sprintf("failed to update product code: %v", err),
		}
	}

	expirationDate, err := s.determineExpirationDate(ctx, item.ExpirationDate)
	if err != nil {
		return &ItemFailure{
			UnitNumber:  outcome.UnitNumber,
			ProductCode: outcome.ProductCode,
			Reason:      fmt.Sprintf("failed to determine expiration date: %v", err),
		}
	}

	event := &models.ProductModified{
		EventID:            uuid.New().String(),
		UnitNumber:         outcome.UnitNumber,
		NewProductCode:     determination.TargetProductCode,
		ProductDescription: determination.TargetProductDescription,
		OriginalCode:       outcome.ProductCode,
		ProductFamily:      item.ProductFamily,
		ExpirationDate:     expirationDate,
		ExpirationTime:     "23:59",
		Location:           location,
	}

	if err := s.publisher.PublishProductModified(ctx, event); err != nil {
		return &ItemFailure{
			UnitNumber:  outcome.UnitNumber,
			ProductCode: outcome.ProductCode,
			Reason:      fmt.Sprintf("failed to publish product modified event: %v", err),
		}
	}

	s.logger.Info("Product modified after irradiation",
		zap.Int64("batch_id", batch.ID),
		zap.String("unit_number", outcome.UnitNumber),
		zap.String("original_code", outcome.ProductCode),
		zap.String("new_product_code", determination.TargetProductCode),
	)

	return nil
}

// publishQuarantineForNonIrradiated 未辐照项汇总成一条隔离事件
func (s *CompletionService) publishQuarantineForNonIrradiated(ctx context.Context, nonIrradiated []models.BatchItemOutcome, performedBy string) []ItemFailure {
	if len(nonIrradiated) == 0 {
		return nil
	}

	products := make([]models.QuarantineProductInput, 0, len(nonIrradiated))
	for _, outcome := range nonIrradiated {
		products = append(products, models.QuarantineProductInput{
			UnitNumber:  outcome.UnitNumber,
			ProductCode: outcome.ProductCode,
		})
	}

	event := &models.QuarantineProduct{
		EventID:     uuid.New().String(),
		Products:    products,
		TriggeredBy: models.TriggeredByIrradiationSystem,
		ReasonKey:   models.ReasonIrradiationIncomplete,
		Comments:    models.CommentIrradiationIncomplete,
		PerformedBy: performedBy,
	}

	if err := s.publisher.PublishQuarantine(ctx, event); err != nil {
		warnings := make([]ItemFailure, 0, len(nonIrradiated))
		for _, outcome := range nonIrradiated {
			warnings = append(warnings, ItemFailure{
				UnitNumber:  outcome.UnitNumber,
				ProductCode: outcome.ProductCode,
				Reason:      fmt.Sprintf("failed to publish quarantine event: %v", err),
			})
		}
		return warnings
	}

	s.logger.Info("Quarantine triggered for non-irradiated items",
		zap.Int("product_count", len(products)),
		zap.String("reason_key", models.ReasonIrradiationIncomplete),
	)

	return nil
}

// determineExpirationDate 计算辐照后的有效期（MM/dd/yyyy）
// 取原有效期与「当前时间 + 配置天数（23:59）」中较早者
func (s *CompletionService) determineExpirationDate(ctx context.Context, originalExpiration *time.Time) (string, error) {
	days, err := s.configs.GetIntValue(ctx, models.ConfigKeyIrradiationExpirationDays, s.defaultExpirationDays)
	if err != nil {
		return "", err
	}

	now := time.Now()
	calculated := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location()).
		AddDate(0, 0, days)

	final := calculated
	if originalExpiration != nil && originalExpiration.Before(calculated) {
		final = *originalExpiration
	}

	return final.Format("01/02/2006"), nil
}

// deviceLocation 读取批次所属设备的地点（仅用于出站事件装配，失败时留空）
func (s *CompletionService) deviceLocation(ctx context.Context, deviceID string) string {
	device, err := s.devices.FindByDeviceID(ctx, deviceID)
	if err != nil || device == nil {
		s.logger.Warn("Failed to resolve device location for completion events",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return ""
	}
	return device.Location
}
