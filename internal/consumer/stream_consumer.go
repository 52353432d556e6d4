package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"biopro-irradiation/internal/common/redis"
	"biopro-irradiation/internal/config"
	"biopro-irradiation/internal/models"

	"go.uber.org/zap"
)

// ProductStoredHandler "product stored" 事件处理接口（隔离引擎实现）
type ProductStoredHandler interface {
	HandleProductStored(ctx context.Context, event *models.ProductStoredEvent) error
}

// DeviceLifecycleHandler 设备生命周期事件处理接口（生命周期服务实现）
type DeviceLifecycleHandler interface {
	HandleDeviceLifecycleEvent(ctx context.Context, event *models.DeviceLifecycleEvent) error
}

// StreamConsumer Redis Streams 事件消费者
// 按消费者组从 product-stored / device-lifecycle 两条流读取事件，
// 只有处理成功才 XACK；失败的消息留在 pending 列表等待重投递
type StreamConsumer struct {
	client        *redis.Client
	streams       config.StreamsConfig
	handlerTO     time.Duration
	locks         *StateManager
	productStored ProductStoredHandler
	lifecycle     DeviceLifecycleHandler
	logger        *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewStreamConsumer 创建事件消费者
func NewStreamConsumer(
	client *redis.Client,
	streams config.StreamsConfig,
	handlerTimeout time.Duration,
	locks *StateManager,
	productStored ProductStoredHandler,
	lifecycle DeviceLifecycleHandler,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		streams:       streams,
		handlerTO:     handlerTimeout,
		locks:         locks,
		productStored: productStored,
		lifecycle:     lifecycle,
		logger:        logger,
	}
}

// Start 创建消费者组并启动两条消费循环
func (c *StreamConsumer) Start(ctx context.Context) error {
	for _, stream := range []string{c.streams.ProductStoredStream, c.streams.DeviceLifecycleStream} {
		if err := redis.CreateConsumerGroup(ctx, c.client, stream, c.streams.ConsumerGroup); err != nil {
			return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(2)
	go c.consumeLoop(runCtx, c.streams.ProductStoredStream, c.handleProductStoredMessage)
	go c.consumeLoop(runCtx, c.streams.DeviceLifecycleStream, c.handleDeviceLifecycleMessage)

	c.logger.Info("Stream consumer started",
		zap.String("product_stored_stream", c.streams.ProductStoredStream),
		zap.String("device_lifecycle_stream", c.streams.DeviceLifecycleStream),
		zap.String("consumer_group", c.streams.ConsumerGroup),
		zap.String("consumer_name", c.streams.ConsumerName),
	)

	return nil
}

// Stop 停止消费循环并等待在途消息处理完成
func (c *StreamConsumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("Stream consumer stopped")
}

// consumeLoop 单条流的消费循环
func (c *StreamConsumer) consumeLoop(ctx context.Context, stream string, handle func(ctx context.Context, msg redis.StreamMessage) error) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messages, err := redis.ReadFromStream(ctx, c.client, stream, c.streams.ConsumerGroup, c.streams.ConsumerName, 10)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to read from stream",
				zap.String("stream", stream),
				zap.Error(err),
			)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range messages {
			msgCtx, cancel := context.WithTimeout(ctx, c.handlerTO)
			err := handle(msgCtx, msg)
			cancel()

			if err != nil {
				// 不 ACK，消息留在 pending 列表等待重投递
				c.logger.Error("Failed to handle stream message",
					zap.String("stream", stream),
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
				continue
			}

			if err := redis.AckMessage(ctx, c.client, stream, c.streams.ConsumerGroup, msg.ID); err != nil {
				c.logger.Error("Failed to ack stream message",
					zap.String("stream", stream),
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
			}
		}
	}
}

// handleProductStoredMessage 解析并处理一条 "product stored" 消息
// 先抢按键处理锁：抢不到说明另一实例正在处理同一事件，本条不 ACK 等待重投
func (c *StreamConsumer) handleProductStoredMessage(ctx context.Context, msg redis.StreamMessage) error {
	var event models.ProductStoredEvent
	if err := decodeMessageData(msg, &event); err != nil {
		// 格式坏掉的消息重投也不会成功，记日志后 ACK 丢弃
		c.logger.Error("Discarding malformed product stored message",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return nil
	}

	acquired, err := c.locks.AcquireLock(ctx, event.UnitNumber, event.ProductCode, event.DeviceUse)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("event %s/%s/%s locked by another consumer",
			event.UnitNumber, event.ProductCode, event.DeviceUse)
	}
	defer c.locks.ReleaseLock(ctx, event.UnitNumber, event.ProductCode, event.DeviceUse)

	return c.productStored.HandleProductStored(ctx, &event)
}

// handleDeviceLifecycleMessage 解析并处理一条设备生命周期消息
func (c *StreamConsumer) handleDeviceLifecycleMessage(ctx context.Context, msg redis.StreamMessage) error {
	var event models.DeviceLifecycleEvent
	if err := decodeMessageData(msg, &event); err != nil {
		c.logger.Error("Discarding malformed device lifecycle message",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return nil
	}

	return c.lifecycle.HandleDeviceLifecycleEvent(ctx, &event)
}

// decodeMessageData 从消息的 "data" 字段解出 JSON 事件体
func decodeMessageData(msg redis.StreamMessage, out interface{}) error {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("message %s has no data field", msg.ID)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode message %s: %w", msg.ID, err)
	}
	return nil
}
