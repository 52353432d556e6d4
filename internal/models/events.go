package models

import "time"

// 出站事件常量（与下游系统约定的标识）
const (
	TriggeredByIrradiationSystem = "IRRADIATION_SYSTEM"

	ReasonOutOfStorageTimeExceeded = "OUT_OF_STORAGE_TIME_EXCEEDED"
	ReasonIrradiationIncomplete    = "IRRADIATION_INCOMPLETE"

	CommentIrradiationIncomplete = "Products not irradiated during batch processing"
)

// ProductStoredEvent 入站 "product stored" 事件
type ProductStoredEvent struct {
	UnitNumber      string    `json:"unit_number"`
	ProductCode     string    `json:"product_code"`
	DeviceStored    string    `json:"device_stored"`
	DeviceUse       string    `json:"device_use"`
	StorageLocation string    `json:"storage_location"`
	Location        string    `json:"location"`
	LocationType    string    `json:"location_type"`
	StorageTime     time.Time `json:"storage_time"`
	PerformedBy     string    `json:"performed_by"`
}

// DeviceLifecycleEvent 入站设备生命周期事件
// 首次出现创建设备，之后覆盖 location/status（纯 upsert，天然幂等）
type DeviceLifecycleEvent struct {
	DeviceID string `json:"device_id"`
	Location string `json:"location"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

// QuarantineProductInput 隔离事件中的单个 unit/product
type QuarantineProductInput struct {
	UnitNumber  string `json:"unit_number"`
	ProductCode string `json:"product_code"`
}

// QuarantineProduct 出站隔离触发事件
// 仅构造并发布，本服务不持久化
type QuarantineProduct struct {
	EventID     string                   `json:"event_id"`
	Products    []QuarantineProductInput `json:"products"`
	TriggeredBy string                   `json:"triggered_by"`
	ReasonKey   string                   `json:"reason_key"`
	Comments    string                   `json:"comments,omitempty"`
	PerformedBy string                   `json:"performed_by"`
}

// ProductModified 出站产品变更事件（辐照完成后产品码/有效期变更）
type ProductModified struct {
	EventID            string `json:"event_id"`
	UnitNumber         string `json:"unit_number"`
	NewProductCode     string `json:"new_product_code"`
	ProductDescription string `json:"product_description,omitempty"`
	OriginalCode       string `json:"original_code"`
	ProductFamily      string `json:"product_family,omitempty"`
	ExpirationDate     string `json:"expiration_date"` // MM/dd/yyyy
	ExpirationTime     string `json:"expiration_time"` // "23:59"
	Location           string `json:"location"`
}
