package client

import (
	"context"
	"fmt"
	"time"

	"biopro-irradiation/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// InventoryClient 库存服务 HTTP 客户端
// 库存与产品状态由库存服务拥有，本服务只读
type InventoryClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// inventoryResponse 库存服务响应
type inventoryResponse struct {
	Inventories []models.InventoryRecord `json:"inventories"`
}

// NewInventoryClient 创建库存服务客户端
func NewInventoryClient(baseURL string, timeout time.Duration, logger *zap.Logger) *InventoryClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &InventoryClient{
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetInventoryByUnitNumber 获取 unit 的全部库存记录
// 任何 HTTP 或业务错误都向上传播，不做标志位兜底
func (c *InventoryClient) GetInventoryByUnitNumber(ctx context.Context, unitNumber string) ([]models.InventoryRecord, error) {
	var response inventoryResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("unitNumber", unitNumber).
		SetResult(&response).
		Get("/inventories/{unitNumber}")

	if err != nil {
		return nil, fmt.Errorf("failed to call inventory service: %w", err)
	}

	if resp.IsError() {
		c.logger.Error("Inventory service returned error",
			zap.String("unit_number", unitNumber),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("inventory service error: status %d", resp.StatusCode())
	}

	c.logger.Debug("Inventory records retrieved",
		zap.String("unit_number", unitNumber),
		zap.Int("record_count", len(response.Inventories)),
	)

	return response.Inventories, nil
}

// GetInventoryByUnitNumberAndProductCode 获取指定 unit/product 的单条库存记录
func (c *InventoryClient) GetInventoryByUnitNumberAndProductCode(ctx context.Context, unitNumber, productCode string) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("unitNumber", unitNumber).
		SetPathParam("productCode", productCode).
		SetResult(&record).
		Get("/inventories/{unitNumber}/{productCode}")

	if err != nil {
		return nil, fmt.Errorf("failed to call inventory service: %w", err)
	}

	if resp.StatusCode() == 404 {
		return nil, nil
	}

	if resp.IsError() {
		c.logger.Error("Inventory service returned error",
			zap.String("unit_number", unitNumber),
			zap.String("product_code", productCode),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("inventory service error: status %d", resp.StatusCode())
	}

	return &record, nil
}
