package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mqcontracts "workledger/contracts/mq"
	"workledger/internal/config"
	"workledger/internal/engine"
	"workledger/internal/handler"
	"workledger/internal/httpserver"
	"workledger/internal/mqhandler"
	"workledger/internal/reconcile"
	"workledger/internal/repository"
	pkgconfig "workledger/pkg/config"
	"workledger/pkg/db"
	"workledger/pkg/logger"
	"workledger/pkg/mq"
	"workledger/pkg/otel"
	"workledger/pkg/outbox"
	"workledger/pkg/redis"
	"workledger/pkg/util"
)

const serviceName = "workledger-engine"

func main() {
	cfg := config.Load()

	log := logger.NewLogger(pkgconfig.GetConfigEnv())
	defer log.Sync()

	log.Info("Starting "+serviceName+"...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	defaultPeriod, err := engine.ParsePeriod(cfg.Engine.DefaultTrendPeriod)
	if err != nil {
		log.Fatal("Invalid engine.default_trend_period", zap.Error(err))
	}

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	if err := repository.Migrate(context.Background(), dbConn, log); err != nil {
		log.Fatal("Failed to migrate DB", zap.Error(err))
	}

	// Redis：去重与投递计数
	rdb, err := redis.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()
	deduper := util.NewDeduper(rdb, cfg.Engine.DedupTTL, log)
	retryPolicy := util.NewRetryPolicy(util.NewRetryCounter(rdb, cfg.Engine.DedupTTL), cfg.Engine.MaxDeliveries, log)

	outboxRepo := outbox.NewRepository(dbConn)
	taskRepo := repository.NewTaskRepository(dbConn, log)
	milestoneRepo := repository.NewMilestoneRepository(dbConn, log)
	projectRepo := repository.NewProjectRepository(dbConn, log)
	incentiveRepo := repository.NewIncentiveRepository(dbConn, outboxRepo, log)
	transactionRepo := repository.NewTransactionRepository(dbConn, outboxRepo, log)
	employeeRepo := repository.NewEmployeeRepository(dbConn, outboxRepo, log)
	principalRepo := repository.NewPrincipalRepository(dbConn, log)
	backlogRepo := repository.NewBacklogRepository(dbConn, log)

	eng := engine.New(engine.Stores{
		Tasks:        taskRepo,
		Milestones:   milestoneRepo,
		Projects:     projectRepo,
		Incentives:   incentiveRepo,
		Transactions: transactionRepo,
		Admins:       principalRepo,
		Employees:    employeeRepo,
	}, log)

	// Outbox → MQ
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(ctx)

	// MQ consumers
	taskHandler := mqhandler.NewTaskStatusChangedHandler(eng, deduper, log)
	projectHandler := mqhandler.NewProjectSavedHandler(projectRepo, eng, deduper, log)

	taskConsumer := startConsumer(log, cfg.MQ.URL, mqcontracts.RoutingTaskStatusChanged, taskHandler.Handle, retryPolicy, publisher)
	defer taskConsumer.Close()
	projectConsumer := startConsumer(log, cfg.MQ.URL, mqcontracts.RoutingProjectSaved, projectHandler.Handle, retryPolicy, publisher)
	defer projectConsumer.Close()

	// Reconciler
	reconciler := reconcile.New(projectRepo, employeeRepo, eng.Cascade(), eng.Ledger(), log).
		WithCatchUp(backlogRepo, eng)
	if err := reconciler.Start(cfg.Engine.ReconcileSchedule); err != nil {
		log.Fatal("Failed to start reconciler", zap.Error(err))
	}

	// HTTP Server
	addr := ":" + cfg.Server.Port
	log.Info("Initializing HTTP server...", zap.String("addr", addr))
	router := httpserver.NewRouter(httpserver.Deps{
		Performance: handler.NewPerformanceHandler(eng.Ranking(), defaultPeriod, log),
		Admin:       handler.NewAdminHandler(outboxRepo, reconciler, log),
		Principals:  principalRepo,
		DB:          dbConn,
		MQ:          []httpserver.Connectivity{publisher, taskConsumer, projectConsumer},
		Logger:      log,
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info(serviceName+" is fully initialized and running",
		zap.String("http_addr", addr),
		zap.String("reconcile_schedule", cfg.Engine.ReconcileSchedule),
	)

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down " + serviceName + " gracefully...")

	// 先停止入口，再停止后台任务
	log.Info("Stopping MQ consumers...")
	taskConsumer.Stop()
	projectConsumer.Stop()

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Stopping reconciler...")
	reconciler.Stop()

	// 最后一轮 outbox 投递后停止 dispatcher
	dispatcher.DispatchOnce(shutdownCtx)
	cancel()

	log.Info(serviceName + " shutdown complete")
}

func startConsumer(
	log *zap.Logger,
	url, routingKey string,
	handle mq.MessageHandler,
	retry mq.RetryPolicy,
	dlq mq.DeadLetterer,
) *mq.Consumer {
	queue := routingKey + ".q"
	log.Info("Initializing MQ consumer...",
		zap.String("queue", queue),
		zap.String("routing_key", routingKey),
	)
	consumer, err := mq.NewConsumer(url, queue, routingKey, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.String("routing_key", routingKey), zap.Error(err))
	}
	consumer.SetHandler(handle)
	consumer.SetRetryPolicy(retry)
	consumer.SetDeadLetterer(dlq)

	go func() {
		log.Info("Starting consumer...", zap.String("routing_key", routingKey))
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("Consumer failed", zap.String("routing_key", routingKey), zap.Error(err))
		}
	}()
	return consumer
}
