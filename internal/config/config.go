package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig Kafka 出站配置（quarantine / product modified 事件）
type KafkaConfig struct {
	Brokers              []string
	QuarantineTopic      string
	ProductModifiedTopic string
}

// StreamsConfig 入站事件流配置（Redis Streams）
type StreamsConfig struct {
	ProductStoredStream   string // "product stored" 事件流
	DeviceLifecycleStream string // 设备生命周期事件流
	ConsumerGroup         string // 消费者组名称
	ConsumerName          string // 消费者名称（默认主机名）
}

// ProcessingConfig 事件处理配置
type ProcessingConfig struct {
	HandlerTimeoutSeconds int    // 单条消息处理超时（秒），默认 30
	LockTTLSeconds        int    // 按键处理锁 TTL（秒），默认 60
	LockKeyPrefix         string // 处理锁键前缀，如 "irradiation:event:"
}

// IrradiationConfig 辐照服务特定配置
type IrradiationConfig struct {
	Streams    StreamsConfig
	Processing ProcessingConfig

	// 辐照后有效期天数（配置表缺失时的兜底值）
	DefaultExpirationDays int
}

// InventoryConfig 库存服务 HTTP 客户端配置
type InventoryConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// Config 辐照服务配置
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Inventory   InventoryConfig
	Irradiation IrradiationConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "irradiation")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Kafka.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	cfg.Kafka.QuarantineTopic = getEnv("KAFKA_QUARANTINE_TOPIC", "QuarantineProduct")
	cfg.Kafka.ProductModifiedTopic = getEnv("KAFKA_PRODUCT_MODIFIED_TOPIC", "ProductModified")

	cfg.Inventory.BaseURL = getEnv("INVENTORY_BASE_URL", "http://localhost:8080")
	cfg.Inventory.TimeoutSeconds = getEnvInt("INVENTORY_TIMEOUT_SECONDS", 10)

	// 入站事件流配置
	cfg.Irradiation.Streams.ProductStoredStream = getEnv("STREAM_PRODUCT_STORED", "biopro:events:product-stored")
	cfg.Irradiation.Streams.DeviceLifecycleStream = getEnv("STREAM_DEVICE_LIFECYCLE", "biopro:events:device-lifecycle")
	cfg.Irradiation.Streams.ConsumerGroup = getEnv("STREAM_CONSUMER_GROUP", "irradiation-service")
	cfg.Irradiation.Streams.ConsumerName = getEnv("STREAM_CONSUMER_NAME", defaultConsumerName())

	cfg.Irradiation.Processing.HandlerTimeoutSeconds = getEnvInt("EVENT_HANDLER_TIMEOUT_SECONDS", 30)
	cfg.Irradiation.Processing.LockTTLSeconds = getEnvInt("EVENT_LOCK_TTL_SECONDS", 60)
	cfg.Irradiation.Processing.LockKeyPrefix = getEnv("EVENT_LOCK_KEY_PREFIX", "irradiation:event:")

	cfg.Irradiation.DefaultExpirationDays = getEnvInt("IRRADIATION_DEFAULT_EXPIRATION_DAYS", 28)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func defaultConsumerName() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "irradiation-consumer"
}
