package repository

import (
	"context"
	"fmt"
	"strconv"

	"database/sql"

	"biopro-irradiation/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ConfigurationRepository 配置表仓库（键值对）
type ConfigurationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConfigurationRepository 创建配置仓库
func NewConfigurationRepository(db *sql.DB, logger *zap.Logger) *ConfigurationRepository {
	return &ConfigurationRepository{
		db:     db,
		logger: logger,
	}
}

// ReadConfiguration 批量读取配置项
func (r *ConfigurationRepository) ReadConfiguration(ctx context.Context, keys []string) ([]models.Configuration, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query := `
		SELECT key, value
		FROM configurations
		WHERE key = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("failed to query configurations: %w", err)
	}
	defer rows.Close()

	var configs []models.Configuration
	for rows.Next() {
		var config models.Configuration
		if err := rows.Scan(&config.Key, &config.Value); err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		configs = append(configs, config)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate configurations: %w", err)
	}

	return configs, nil
}

// GetIntValue 读取整数配置项
// 键不存在时返回 (defaultValue, nil)；值非法返回错误
func (r *ConfigurationRepository) GetIntValue(ctx context.Context, key string, defaultValue int) (int, error) {
	configs, err := r.ReadConfiguration(ctx, []string{key})
	if err != nil {
		return 0, err
	}
	if len(configs) == 0 {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(configs[0].Value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer configuration %s=%q: %w", key, configs[0].Value, err)
	}

	return value, nil
}
