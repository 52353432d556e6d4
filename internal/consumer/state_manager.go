package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StateManager 事件处理锁管理器
// 用 Redis SETNX 对「unit/product/deviceUse」键做短期互斥，
// 避免同一 stored 事件被多个消费者实例同时处理
type StateManager struct {
	client    *redis.Client
	keyPrefix string
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewStateManager 创建事件处理锁管理器
func NewStateManager(client *redis.Client, keyPrefix string, lockTTL time.Duration, logger *zap.Logger) *StateManager {
	return &StateManager{
		client:    client,
		keyPrefix: keyPrefix,
		lockTTL:   lockTTL,
		logger:    logger,
	}
}

// lockKey 生成处理锁键
func (m *StateManager) lockKey(unitNumber, productCode, deviceUse string) string {
	return fmt.Sprintf("%s%s:%s:%s", m.keyPrefix, unitNumber, productCode, deviceUse)
}

// AcquireLock 尝试获取事件处理锁
// 返回 false 表示锁已被其他消费者持有，调用方应跳过本次处理
func (m *StateManager) AcquireLock(ctx context.Context, unitNumber, productCode, deviceUse string) (bool, error) {
	key := m.lockKey(unitNumber, productCode, deviceUse)

	acquired, err := m.client.SetNX(ctx, key, "1", m.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire processing lock: %w", err)
	}

	if !acquired {
		m.logger.Debug("Processing lock held by another consumer",
			zap.String("lock_key", key),
		)
	}

	return acquired, nil
}

// ReleaseLock 释放事件处理锁
// 释放失败只记日志：锁带 TTL，过期后自然失效
func (m *StateManager) ReleaseLock(ctx context.Context, unitNumber, productCode, deviceUse string) {
	key := m.lockKey(unitNumber, productCode, deviceUse)

	if err := m.client.Del(ctx, key).Err(); err != nil {
		m.logger.Warn("Failed to release processing lock",
			zap.String("lock_key", key),
			zap.Error(err),
		)
	}
}
