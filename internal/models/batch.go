package models

import "time"

// Batch 辐照批次（对应 batches 表）
// 一个设备同一时刻至多有一个 end_time 为空的批次（活跃批次）
type Batch struct {
	ID        int64      `json:"id" db:"id"`
	DeviceID  string     `json:"device_id" db:"device_id"`
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`
	Items     []BatchItem `json:"items,omitempty"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive 批次是否仍然打开（未设置 end_time）
func (b *Batch) IsActive() bool {
	return b.EndTime == nil
}

// BatchItem 批次内的单个血液制品（对应 batch_items 表）
// 归属于唯一批次；irradiated 仅在批次关闭时写入
type BatchItem struct {
	ID             int64      `json:"id" db:"id"`
	BatchID        int64      `json:"batch_id" db:"batch_id"`
	UnitNumber     string     `json:"unit_number" db:"unit_number"`
	ProductCode    string     `json:"product_code" db:"product_code"`
	LotNumber      string     `json:"lot_number" db:"lot_number"`
	ProductFamily  string     `json:"product_family" db:"product_family"`
	NewProductCode *string    `json:"new_product_code,omitempty" db:"new_product_code"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty" db:"expiration_date"`
	Irradiated     *bool      `json:"irradiated,omitempty" db:"irradiated"`
}

// BatchItemOutcome 批次关闭时上报的单品辐照结果
type BatchItemOutcome struct {
	UnitNumber  string `json:"unit_number"`
	ProductCode string `json:"product_code"`
	Irradiated  bool   `json:"irradiated"`
}

// NewBatchItemInput 添加到批次的单品输入
type NewBatchItemInput struct {
	UnitNumber     string     `json:"unit_number"`
	ProductCode    string     `json:"product_code"`
	LotNumber      string     `json:"lot_number"`
	ProductFamily  string     `json:"product_family"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}
