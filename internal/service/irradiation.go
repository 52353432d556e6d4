package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"biopro-irradiation/internal/client"
	"biopro-irradiation/internal/common/database"
	commonredis "biopro-irradiation/internal/common/redis"
	"biopro-irradiation/internal/config"
	"biopro-irradiation/internal/consumer"
	"biopro-irradiation/internal/evaluator"
	"biopro-irradiation/internal/publisher"
	"biopro-irradiation/internal/repository"

	"go.uber.org/zap"
)

// IrradiationService 辐照服务根对象
// 装配数据库、Redis、Kafka、各仓库与业务服务，并托管入站消费循环
type IrradiationService struct {
	cfg    *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *commonredis.Client
	publisher   *publisher.KafkaPublisher
	consumer    *consumer.StreamConsumer

	Lifecycle     *LifecycleService
	Eligibility   *evaluator.EligibilityEvaluator
	ProductStored *ProductStoredService
}

// NewIrradiationService 创建并装配辐照服务
func NewIrradiationService(cfg *config.Config, logger *zap.Logger) (*IrradiationService, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	if err := commonredis.Ping(context.Background(), redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 仓库层
	deviceRepo := repository.NewDeviceRepository(db, logger)
	batchRepo := repository.NewBatchRepository(db, logger)
	storageEventRepo := repository.NewStorageEventRepository(db, logger)
	determinationRepo := repository.NewProductDeterminationRepository(db, logger)
	configurationRepo := repository.NewConfigurationRepository(db, logger)

	// 外部依赖
	inventoryClient := client.NewInventoryClient(
		cfg.Inventory.BaseURL,
		time.Duration(cfg.Inventory.TimeoutSeconds)*time.Second,
		logger,
	)
	kafkaPublisher := publisher.NewKafkaPublisher(&cfg.Kafka, logger)

	// 判定器
	eligibility := evaluator.NewEligibilityEvaluator(inventoryClient, batchRepo, determinationRepo, logger)
	outOfStorage := evaluator.NewOutOfStorageEvaluator(configurationRepo, logger)

	// 业务服务
	completion := NewCompletionService(
		batchRepo,
		determinationRepo,
		configurationRepo,
		deviceRepo,
		kafkaPublisher,
		cfg.Irradiation.DefaultExpirationDays,
		logger,
	)
	lifecycle := NewLifecycleService(deviceRepo, batchRepo, completion, logger)
	productStored := NewProductStoredService(batchRepo, storageEventRepo, outOfStorage, kafkaPublisher, logger)

	// 入站消费
	locks := consumer.NewStateManager(
		redisClient,
		cfg.Irradiation.Processing.LockKeyPrefix,
		time.Duration(cfg.Irradiation.Processing.LockTTLSeconds)*time.Second,
		logger,
	)
	streamConsumer := consumer.NewStreamConsumer(
		redisClient,
		cfg.Irradiation.Streams,
		time.Duration(cfg.Irradiation.Processing.HandlerTimeoutSeconds)*time.Second,
		locks,
		productStored,
		lifecycle,
		logger,
	)

	return &IrradiationService{
		cfg:           cfg,
		logger:        logger,
		db:            db,
		redisClient:   redisClient,
		publisher:     kafkaPublisher,
		consumer:      streamConsumer,
		Lifecycle:     lifecycle,
		Eligibility:   eligibility,
		ProductStored: productStored,
	}, nil
}

// Start 启动入站事件消费
func (s *IrradiationService) Start(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream consumer: %w", err)
	}

	s.logger.Info("Irradiation service started")
	return nil
}

// Stop 停止消费并释放资源
func (s *IrradiationService) Stop() {
	s.consumer.Stop()

	if err := s.publisher.Close(); err != nil {
		s.logger.Warn("Failed to close kafka publisher", zap.Error(err))
	}
	if err := commonredis.Close(s.redisClient); err != nil {
		s.logger.Warn("Failed to close redis client", zap.Error(err))
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Warn("Failed to close database", zap.Error(err))
	}

	s.logger.Info("Irradiation service stopped")
}
