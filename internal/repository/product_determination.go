package repository

import (
	"context"
	"database/sql"
	"fmt"

	"biopro-irradiation/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ProductDeterminationRepository 产品判定规则仓库（源产品码 → 辐照后目标产品码）
type ProductDeterminationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductDeterminationRepository 创建产品判定规则仓库
func NewProductDeterminationRepository(db *sql.DB, logger *zap.Logger) *ProductDeterminationRepository {
	return &ProductDeterminationRepository{
		db:     db,
		logger: logger,
	}
}

// ExistsBySourceProductCode 指定源产品码是否配置了辐照目标产品码
func (r *ProductDeterminationRepository) ExistsBySourceProductCode(ctx context.Context, sourceProductCode string) (bool, error) {
	query := `
		SELECT COUNT(*) > 0
		FROM product_determinations
		WHERE source_product_code = $1
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, sourceProductCode).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query product determination existence: %w", err)
	}

	return exists, nil
}

// FindBySourceProductCode 获取指定源产品码的判定规则
// 不存在时返回 (nil, nil)
func (r *ProductDeterminationRepository) FindBySourceProductCode(ctx context.Context, sourceProductCode string) (*models.ProductDetermination, error) {
	query := `
		SELECT source_product_code, target_product_code, target_product_description
		FROM product_determinations
		WHERE source_product_code = $1
	`

	var determination models.ProductDetermination
	err := r.db.QueryRowContext(ctx, query, sourceProductCode).Scan(
		&determination.SourceProductCode,
		&determination.TargetProductCode,
		&determination.TargetProductDescription,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query product determination: %w", err)
	}

	return &determination, nil
}

// FindBySourceProductCodes 批量获取判定规则（以源产品码为键）
func (r *ProductDeterminationRepository) FindBySourceProductCodes(ctx context.Context, sourceProductCodes []string) (map[string]models.ProductDetermination, error) {
	if len(sourceProductCodes) == 0 {
		return map[string]models.ProductDetermination{}, nil
	}

	query := `
		SELECT source_product_code, target_product_code, target_product_description
		FROM product_determinations
		WHERE source_product_code = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(sourceProductCodes))
	if err != nil {
		return nil, fmt.Errorf("failed to query product determinations: %w", err)
	}
	defer rows.Close()

	determinations := make(map[string]models.ProductDetermination)
	for rows.Next() {
		var determination models.ProductDetermination
		err := rows.Scan(
			&determination.SourceProductCode,
			&determination.TargetProductCode,
			&determination.TargetProductDescription,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product determination: %w", err)
		}
		determinations[determination.SourceProductCode] = determination
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product determinations: %w", err)
	}

	return determinations, nil
}
