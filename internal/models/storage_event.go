package models

import "time"

// StorageEventRecord 存储事件处理台账（对应 storage_event_records 表）
// 幂等去重账本：唯一键 (unit_number, product_code, device_use, batch_id)；
// 只插入、只把 processed 从 false 翻到 true，从不删除
type StorageEventRecord struct {
	ID          int64     `json:"id" db:"id"`
	UnitNumber  string    `json:"unit_number" db:"unit_number"`
	ProductCode string    `json:"product_code" db:"product_code"`
	DeviceUse   string    `json:"device_use" db:"device_use"`
	BatchID     int64     `json:"batch_id" db:"batch_id"`
	Processed   bool      `json:"processed" db:"processed"`
	StorageTime time.Time `json:"storage_time" db:"storage_time"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
