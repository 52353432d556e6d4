package models

import "time"

// 库存记录状态（可进入辐照批次的状态集合见 evaluator）
const (
	InventoryStatusAvailable = "AVAILABLE"
	InventoryStatusDiscarded = "DISCARDED"
)

// InventoryRecord 库存服务返回的单条库存记录
// 一个 unit 可能对应多条记录（不同 product code），逐条独立校验
type InventoryRecord struct {
	UnitNumber         string     `json:"unit_number"`
	ProductCode        string     `json:"product_code"`
	Location           string     `json:"location"`
	Status             string     `json:"status"`
	ProductDescription string     `json:"product_description,omitempty"`
	ProductFamily      string     `json:"product_family,omitempty"`
	LotNumber          string     `json:"lot_number,omitempty"`
	ExpirationDate     *time.Time `json:"expiration_date,omitempty"`
	StatusReason       *string    `json:"status_reason,omitempty"`
	UnsuitableReason   *string    `json:"unsuitable_reason,omitempty"`
	Expired            bool       `json:"expired"`
}

// EligibilityResult 单条库存记录的准入校验结果
// 三个标志都不是错误，接受与否由调用方（批次添加用例）决定
type EligibilityResult struct {
	Inventory InventoryRecord `json:"inventory"`

	AlreadyIrradiated             bool `json:"already_irradiated"`               // 已完成过辐照
	NotConfigurableForIrradiation bool `json:"not_configurable_for_irradiation"` // 无目标产品码配置
	IsBeingIrradiated             bool `json:"is_being_irradiated"`              // 正在某个打开的批次中
}

// CanEnterBatch 默认接受策略：仅当缺少产品判定配置时拒绝
func (r *EligibilityResult) CanEnterBatch() bool {
	return !r.NotConfigurableForIrradiation
}
