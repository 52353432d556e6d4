package models

import "time"

// 设备类别与状态常量
const (
	DeviceCategoryIrradiator = "IRRADIATOR"

	DeviceStatusActive   = "ACTIVE"
	DeviceStatusInactive = "INACTIVE"
)

// Device 辐照设备（对应 devices 表）
// 由上游设备生命周期事件创建和更新，只停用不删除
type Device struct {
	DeviceID  string    `json:"device_id" db:"device_id"`
	Location  string    `json:"location" db:"location"`
	Category  string    `json:"category" db:"category"` // 只跟踪 IRRADIATOR
	Status    string    `json:"status" db:"status"`     // ACTIVE / INACTIVE
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive 设备是否处于激活状态
func (d *Device) IsActive() bool {
	return d.Status == DeviceStatusActive
}

// IsAtLocation 设备是否在指定地点
func (d *Device) IsAtLocation(location string) bool {
	return d.Location == location
}
