package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xela07ax/trustgate/internal/audit"
	"github.com/xela07ax/trustgate/internal/connectors"
	"github.com/xela07ax/trustgate/internal/console/handler"
	"github.com/xela07ax/trustgate/internal/console/server"
	"github.com/xela07ax/trustgate/internal/console/service"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/engine"
	"github.com/xela07ax/trustgate/internal/infra"
	"github.com/xela07ax/trustgate/internal/infra/auth"
	"github.com/xela07ax/trustgate/internal/repository/postgres"
	"github.com/xela07ax/trustgate/internal/risk"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("trustgate stopped with error", zap.Error(err))
	}
	logger.Info("trustgate exited properly")
}

// TRUSTGATE_CONFIG указывает явный путь, иначе ищем config.yaml в . и ./configs
func loadConfig() (*infra.Config, error) {
	if path := os.Getenv("TRUSTGATE_CONFIG"); path != "" {
		return infra.LoadConfigFile(path)
	}
	return infra.LoadConfig()
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Инфраструктура и ресурсы
	store, err := postgres.NewStore(appCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	err = store.Ping(pingCtx)
	pingCancel()
	if err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := store.Migrate(appCtx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 2. Движок надежности + синхронизация весов (PostgreSQL — правда, Redis — сигнал)
	relCfg := engine.ReliabilityConfigFrom(cfg.Engine)
	rel, err := engine.NewReliabilityEngine(relCfg, logger)
	if err != nil {
		return fmt.Errorf("reliability engine: %w", err)
	}
	holder := engine.NewReliabilityHolder(rel)

	if err := engine.SeedWeights(appCtx, rdb, store, relCfg.Weights, logger); err != nil {
		logger.Warn("weights seeding failed", zap.Error(err))
	}
	weightsSync := engine.NewWeightsSync(holder, store, rdb, logger)
	if err := weightsSync.Refresh(appCtx); err != nil {
		logger.Warn("initial weights load failed, using config weights", zap.Error(err))
	}
	go weightsSync.StartListener(appCtx)

	// 3. Control Plane: Kill-Switch экспертов
	ksm := engine.NewKillSwitchManager(rdb, logger)
	if err := ksm.Init(appCtx); err != nil {
		return fmt.Errorf("kill-switch init: %w", err)
	}
	go ksm.StartListener(appCtx)

	// 4. Удаленные эксперты (адреса из конфига)
	experts := make([]engine.Expert, 0, len(cfg.Experts))
	for _, ec := range cfg.Experts {
		conn, err := grpc.NewClient(ec.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("expert %s: %w", ec.Type, err)
		}
		defer conn.Close()
		experts = append(experts, connectors.NewRemoteExpert(domain.AgentType(ec.Type), conn))
		logger.Info("expert registered", zap.String("agent_type", ec.Type), zap.String("addr", ec.Addr))
	}
	runner := engine.NewExpertRunner(engine.RunnerConfigFrom(cfg.Engine), ksm, metrics, logger, experts...)

	// 5. Аудит: данные летят в базу пачками
	agentFS := audit.NewAgentFS(store, audit.Options{
		BufferSize:    cfg.Engine.AuditBufferSize,
		BatchSize:     cfg.Engine.AuditBatchSize,
		FlushInterval: cfg.Engine.AuditFlushInterval,
	}, logger)
	agentFS.Start()
	defer agentFS.Stop()

	// 6. Core
	var detector *risk.ConflictDetector
	if cfg.Engine.DetectConflicts {
		detector = risk.NewConflictDetector(cfg.Engine.MinRiskGap, logger)
	}
	core := engine.NewReviewCore(engine.ReviewCoreDeps{
		Reliability: holder,
		Decider:     risk.NewDecisionAgent(logger),
		Detector:    detector,
		Runner:      runner,
		Approvals:   store,
		Publisher:   rdb,
		Auditor:     agentFS,
		Metrics:     metrics,
		Tracer:      otel.Tracer("github.com/xela07ax/trustgate"),
	}, logger)

	// 7. Console API
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		return fmt.Errorf("console auth: %w", err)
	}
	console := server.NewConsoleServer(auth.NewBaseValidator(pubKey), server.Handlers{
		Review:      handler.NewReviewHandler(service.NewReviewService(core, logger)),
		Reliability: handler.NewReliabilityHandler(service.NewReliabilityService(holder, store, rdb, logger)),
		Approval:    handler.NewApprovalHandler(service.NewApprovalService(store, rdb, logger)),
		Expert:      handler.NewExpertHandler(service.NewExpertControlService(rdb, logger)),
		Dashboard:   handler.NewDashboardHandler(service.NewDashboardService(store)),
		Audit:       handler.NewAuditHandler(service.NewAuditService(store)),
	}, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      console,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	metricsSrv := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	// 8. gRPC ReviewService
	var grpcOpts []grpc.ServerOption
	if cfg.Auth.APIKeyHash != "" {
		grpcOpts = append(grpcOpts, grpc.UnaryInterceptor(engine.APIKeyInterceptor([]byte(cfg.Auth.APIKeyHash))))
	}
	grpcSrv := grpc.NewServer(grpcOpts...)
	engine.RegisterReviewServiceServer(grpcSrv, engine.NewGRPCReviewServer(core))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
	if err != nil {
		return fmt.Errorf("failed to listen gRPC: %w", err)
	}

	errCh := make(chan error, 3)
	go func() {
		logger.Info("gRPC ReviewService started", zap.String("addr", lis.Addr().String()))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("console: %w", err)
		}
	}()
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics: %w", err)
		}
	}()

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-stop:
		logger.Info("trustgate stopping...")
	case runErr = <-errCh:
	}

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("console shutdown failed", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	cancel() // останавливаем слушателей Redis; AgentFS сливает буфер в defer

	return runErr
}
