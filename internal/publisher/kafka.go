package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"biopro-irradiation/internal/config"
	"biopro-irradiation/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// kafkaWriter kafka.Writer 的可替换子集（测试用）
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 出站事件发布器
// QuarantineProduct 与 ProductModified 分别写入各自的 topic；
// 消息键取 unit number，保证同一 unit 的事件落在同一分区内有序
type KafkaPublisher struct {
	quarantineWriter      kafkaWriter
	productModifiedWriter kafkaWriter
	logger                *zap.Logger
}

// NewKafkaPublisher 创建出站事件发布器
func NewKafkaPublisher(cfg *config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		quarantineWriter: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.QuarantineTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		productModifiedWriter: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.ProductModifiedTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

// PublishQuarantine 发布隔离触发事件
func (p *KafkaPublisher) PublishQuarantine(ctx context.Context, event *models.QuarantineProduct) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal quarantine event: %w", err)
	}

	var key []byte
	if len(event.Products) > 0 {
		key = []byte(event.Products[0].UnitNumber)
	}

	err = p.quarantineWriter.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish quarantine event: %w", err)
	}

	p.logger.Info("Quarantine event published",
		zap.String("event_id", event.EventID),
		zap.String("reason_key", event.ReasonKey),
		zap.Int("product_count", len(event.Products)),
	)

	return nil
}

// PublishProductModified 发布产品变更事件
func (p *KafkaPublisher) PublishProductModified(ctx context.Context, event *models.ProductModified) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal product modified event: %w", err)
	}

	err = p.productModifiedWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UnitNumber),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish product modified event: %w", err)
	}

	p.logger.Info("Product modified event published",
		zap.String("event_id", event.EventID),
		zap.String("unit_number", event.UnitNumber),
		zap.String("new_product_code", event.NewProductCode),
	)

	return nil
}

// Close 关闭底层 Kafka writer
func (p *KafkaPublisher) Close() error {
	if err := p.quarantineWriter.Close(); err != nil {
		return err
	}
	return p.productModifiedWriter.Close()
}
