package evaluator

import (
	"context"
	"errors"
	"sync"

	"biopro-irradiation/internal/models"

	"go.uber.org/zap"
)

// ErrNoEligibleProduct 过滤后没有任何库存记录可进入辐照批次
var ErrNoEligibleProduct = errors.New("no eligible product for irradiation")

// InventoryLookup 库存服务查询接口
type InventoryLookup interface {
	GetInventoryByUnitNumber(ctx context.Context, unitNumber string) ([]models.InventoryRecord, error)
}

// IrradiationHistory 辐照历史查询接口（批次仓库实现）
type IrradiationHistory interface {
	IsUnitAlreadyIrradiated(ctx context.Context, unitNumber, productCode string) (bool, error)
	IsUnitBeingIrradiated(ctx context.Context, unitNumber, productCode string) (bool, error)
}

// DeterminationLookup 产品判定规则查询接口
type DeterminationLookup interface {
	ExistsBySourceProductCode(ctx context.Context, sourceProductCode string) (bool, error)
}

// EligibilityOutcome 准入校验序列中的单个结果
// Err 非空表示下游查询硬失败，序列随即终止
type EligibilityOutcome struct {
	Result *models.EligibilityResult
	Err    error
}

// EligibilityEvaluator 单品准入校验器
// 对扫描的 unit 逐条库存记录判定能否进入辐照批次；三个准入标志只是事实，
// 接受策略由调用方决定（默认策略见 models.EligibilityResult）
type EligibilityEvaluator struct {
	inventory      InventoryLookup
	history        IrradiationHistory
	determinations DeterminationLookup
	logger         *zap.Logger
}

// NewEligibilityEvaluator 创建准入校验器
func NewEligibilityEvaluator(
	inventory InventoryLookup,
	history IrradiationHistory,
	determinations DeterminationLookup,
	logger *zap.Logger,
) *EligibilityEvaluator {
	return &EligibilityEvaluator{
		inventory:      inventory,
		history:        history,
		determinations: determinations,
		logger:         logger,
	}
}

// ValidateUnit 校验 unit 在指定地点的全部库存记录
// 返回按记录顺序产出的有限惰性序列（channel 关闭即结束，不可重放）。
// 过滤规则：地点一致且状态为 AVAILABLE / DISCARDED；全部被过滤时返回
// ErrNoEligibleProduct。存活记录逐条并发解析三个准入标志。
func (e *EligibilityEvaluator) ValidateUnit(ctx context.Context, unitNumber, location string) (<-chan EligibilityOutcome, error) {
	records, err := e.inventory.GetInventoryByUnitNumber(ctx, unitNumber)
	if err != nil {
		return nil, err
	}

	var eligible []models.InventoryRecord
	for _, record := range records {
		if record.Location == location && isAcceptedStatus(record.Status) {
			eligible = append(eligible, record)
		}
	}

	if len(eligible) == 0 {
		return nil, ErrNoEligibleProduct
	}

	out := make(chan EligibilityOutcome)
	go func() {
		defer close(out)
		for _, record := range eligible {
			result, err := e.enrich(ctx, record)
			if err != nil {
				select {
				case out <- EligibilityOutcome{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case out <- EligibilityOutcome{Result: result}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// enrich 并发解析单条库存记录的三个准入标志
// 三个查询相互独立，可并行发出后汇合；任何一个失败都作为硬错误返回
func (e *EligibilityEvaluator) enrich(ctx context.Context, record models.InventoryRecord) (*models.EligibilityResult, error) {
	var (
		alreadyIrradiated bool
		configured        bool
		beingIrradiated   bool

		alreadyErr    error
		configuredErr error
		beingErr      error
	)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		alreadyIrradiated, alreadyErr = e.history.IsUnitAlreadyIrradiated(ctx, record.UnitNumber, record.ProductCode)
	}()
	go func() {
		defer wg.Done()
		configured, configuredErr = e.determinations.ExistsBySourceProductCode(ctx, record.ProductCode)
	}()
	go func() {
		defer wg.Done()
		beingIrradiated, beingErr = e.history.IsUnitBeingIrradiated(ctx, record.UnitNumber, record.ProductCode)
	}()

	wg.Wait()

	for _, err := range []error{alreadyErr, configuredErr, beingErr} {
		if err != nil {
			return nil, err
		}
	}

	e.logger.Debug("Eligibility flags resolved",
		zap.String("unit_number", record.UnitNumber),
		zap.String("product_code", record.ProductCode),
		zap.Bool("already_irradiated", alreadyIrradiated),
		zap.Bool("not_configurable", !configured),
		zap.Bool("being_irradiated", beingIrradiated),
	)

	return &models.EligibilityResult{
		Inventory:                     record,
		AlreadyIrradiated:             alreadyIrradiated,
		NotConfigurableForIrradiation: !configured,
		IsBeingIrradiated:             beingIrradiated,
	}, nil
}

// isAcceptedStatus 库存状态是否允许进入辐照批次
func isAcceptedStatus(status string) bool {
	return status == models.InventoryStatusAvailable || status == models.InventoryStatusDiscarded
}
