package evaluator

import (
	"context"
	"fmt"
	"time"

	"biopro-irradiation/internal/models"

	"go.uber.org/zap"
)

// ThresholdSource 超储存时限阈值来源（配置表仓库实现）
type ThresholdSource interface {
	ReadConfiguration(ctx context.Context, keys []string) ([]models.Configuration, error)
}

// OutOfStorageResult 超储存时限判定结果
type OutOfStorageResult struct {
	Exceeded  bool          // 是否超过阈值（严格大于才算超过）
	Elapsed   time.Duration // 实际离开存储的时长
	Threshold time.Duration // 配置的阈值
}

// OutOfStorageEvaluator 超储存时限判定器
// 阈值按产品族从配置表读取（键 OUT_OF_STORAGE_<productFamily>，单位分钟）
type OutOfStorageEvaluator struct {
	thresholds ThresholdSource
	logger     *zap.Logger
}

// NewOutOfStorageEvaluator 创建超储存时限判定器
func NewOutOfStorageEvaluator(thresholds ThresholdSource, logger *zap.Logger) *OutOfStorageEvaluator {
	return &OutOfStorageEvaluator{
		thresholds: thresholds,
		logger:     logger,
	}
}

// Evaluate 判定 unit 是否超出允许的离储时长
// elapsed = storageTime - batchStartTime；恰好等于阈值不算超出，多一个
// 时间单位才算。阈值未配置视为硬错误向上传播，绝不吞掉可能的违规。
func (e *OutOfStorageEvaluator) Evaluate(ctx context.Context, batchStartTime, storageTime time.Time, productFamily string) (*OutOfStorageResult, error) {
	key := models.ConfigKeyOutOfStoragePrefix + productFamily

	configs, err := e.thresholds.ReadConfiguration(ctx, []string{key})
	if err != nil {
		return nil, fmt.Errorf("failed to read out-of-storage threshold: %w", err)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("out-of-storage threshold not configured: %s", key)
	}

	var minutes int
	if _, err := fmt.Sscanf(configs[0].Value, "%d", &minutes); err != nil {
		return nil, fmt.Errorf("invalid out-of-storage threshold %s=%q: %w", key, configs[0].Value, err)
	}

	threshold := time.Duration(minutes) * time.Minute
	elapsed := storageTime.Sub(batchStartTime)

	result := &OutOfStorageResult{
		Exceeded:  elapsed > threshold,
		Elapsed:   elapsed,
		Threshold: threshold,
	}

	e.logger.Debug("Out-of-storage time evaluated",
		zap.String("product_family", productFamily),
		zap.Duration("elapsed", elapsed),
		zap.Duration("threshold", threshold),
		zap.Bool("exceeded", result.Exceeded),
	)

	return result, nil
}
