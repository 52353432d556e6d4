package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"biopro-irradiation/internal/common/logger"
	"biopro-irradiation/internal/config"
	"biopro-irradiation/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "biopro-irradiation")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting irradiation service",
		zap.String("log_level", cfg.Log.Level),
	)

	// 装配服务
	svc, err := service.NewIrradiationService(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize irradiation service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		log.Fatal("Failed to start irradiation service", zap.Error(err))
	}

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	cancel()
	svc.Stop()

	log.Info("Irradiation service exited")
}
