package models

// 配置表键（configurations 表）
const (
	// 超储存时限阈值键前缀，完整键形如 OUT_OF_STORAGE_RED_BLOOD_CELLS，值为分钟数
	ConfigKeyOutOfStoragePrefix = "OUT_OF_STORAGE_"

	// 辐照后有效期天数
	ConfigKeyIrradiationExpirationDays = "IRRADIATION_EXPIRATION_DAYS"
)

// Configuration 配置项（键值对）
type Configuration struct {
	Key   string `json:"key" db:"key"`
	Value string `json:"value" db:"value"`
}

// ProductDetermination 产品判定规则（源产品码 → 辐照后目标产品码）
type ProductDetermination struct {
	SourceProductCode        string `json:"source_product_code" db:"source_product_code"`
	TargetProductCode        string `json:"target_product_code" db:"target_product_code"`
	TargetProductDescription string `json:"target_product_description" db:"target_product_description"`
}
