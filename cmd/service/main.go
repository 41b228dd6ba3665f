package main

import (
	"allocation-service/config"
	_ "allocation-service/docs"
	"allocation-service/internal/alert"
	"allocation-service/internal/allocation"
	"allocation-service/internal/cache"
	"allocation-service/internal/checkout"
	"allocation-service/internal/delivery"
	"allocation-service/internal/events"
	"allocation-service/internal/handlers"
	"allocation-service/internal/payment"
	"allocation-service/internal/pincode"
	"allocation-service/internal/reference"
	"allocation-service/internal/repository"
	"allocation-service/internal/repository/memory"
	"allocation-service/internal/reservation"
	"allocation-service/internal/router"
	"allocation-service/internal/sweeper"
	"allocation-service/internal/warehouse"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/database"
	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// backend is what both the Postgres store and the in-memory store provide.
type backend interface {
	warehouse.Store
	pincode.Source
	reservation.Store
	checkout.Catalog
	reference.Store
}

// @Title Allocation Service API
// @Version 1.0
// @Description Проверка доставки, выбор склада и резервирование стока при оформлении заказа
// @BasePath /
func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	var store backend
	if cfg.UsesPostgres() {
		db := database.ConnectDB(&cfg.DB.Config, log)
		defer database.CloseDB(db, log)
		store = repository.NewStore(repository.New(db))
	} else {
		log.Warn("STORAGE_DRIVER=memory: данные не переживут рестарт")
		store = memory.New()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := warehouse.NewRegistry(store, log)
	if err := registry.Refresh(ctx); err != nil {
		log.Fatal("failed to load warehouses", zap.Error(err))
	}
	directory := pincode.NewDirectory(store, registry, log)
	if err := directory.Refresh(ctx); err != nil {
		log.Fatal("failed to load pincodes", zap.Error(err))
	}
	registry.CheckCoverage(directory.ZoneIDs())

	engine := allocation.NewEngine(directory, registry)
	reservations := reservation.NewManager(store, log)

	var remote delivery.Remote
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("failed to create redis client", zap.Error(err))
		}
		defer redisClient.Close()
		remote = redisClient
		log.Info("Redis cache enabled")
	} else {
		log.Info("Redis cache disabled")
	}

	dcfg := delivery.DefaultConfig()
	dcfg.ZoneTTL = cfg.Cache.ZoneTTL
	dcfg.AvailabilityTTL = cfg.Cache.AvailabilityTTL
	dcfg.MaxEntries = cfg.Cache.MaxEntries
	dcfg.BatchWindow = cfg.Cache.BatchWindow
	dcfg.MaxBatchSize = cfg.Cache.MaxBatch
	deliverySvc := delivery.NewService(dcfg, delivery.NewCache(dcfg.MaxEntries, remote, log), engine, directory, log)

	var publisher checkout.Publisher
	if cfg.Kafka.Enabled() {
		producer := events.NewCheckoutProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = producer
	}
	var alerter checkout.Alerter
	if cfg.SMTP.Enabled() {
		alerter = alert.NewEmailAlerter(alert.Config{
			SMTPHost:     cfg.SMTP.Host,
			SMTPPort:     cfg.SMTP.Port,
			SMTPUser:     cfg.SMTP.User,
			SMTPPassword: cfg.SMTP.Password,
			SMTPFrom:     cfg.SMTP.From,
			To:           cfg.SMTP.AlertTo,
		})
	}

	orch := checkout.NewOrchestrator(engine, reservations, store, publisher, alerter,
		checkout.Config{PaymentTimeout: cfg.Checkout.PaymentTimeout}, log)

	scfg := sweeper.DefaultConfig()
	scfg.ReservationMaxAge = cfg.Sweeper.ReservationMaxAge
	scfg.SweepInterval = cfg.Sweeper.SweepInterval
	scfg.CacheSweepInterval = cfg.Sweeper.CacheSweepInterval
	scfg.RefreshInterval = cfg.Sweeper.RefreshInterval
	sweepSvc := sweeper.NewService(reservations, deliverySvc, orch, scfg, log, registry, directory)
	scheduler := sweeper.NewScheduler(sweepSvc, log)
	scheduler.Start(ctx)

	importer := reference.NewImporter(store, registry, directory, registry, directory, deliverySvc, log)
	r := router.Router(router.Handlers{
		Delivery:  handlers.NewDeliveryHandler(deliverySvc, log),
		Checkout:  handlers.NewCheckoutHandler(orch, deliverySvc, 10*time.Second, log),
		Warehouse: handlers.NewWarehouseHandler(registry, deliverySvc, log),
		Reference: handlers.NewReferenceHandler(importer, log),
	}, log)
	httpSrv := &http.Server{
		Addr:              listenAddr(cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", listenAddr(cfg.GRPCPort))
	if err != nil {
		log.Fatal("failed to listen", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("Starting gRPC health server", zap.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})
	if cfg.Kafka.Enabled() {
		consumer := payment.NewKafkaPaymentConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.TopicPayments, orch, log)
		defer consumer.Close()
		g.Go(func() error {
			log.Info("Starting payment signal consumer", zap.String("topic", cfg.Kafka.TopicPayments))
			return consumer.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down allocation service...")
		healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		scheduler.Stop()
		orch.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("allocation service stopped with error", zap.Error(err))
		return
	}
	log.Info("allocation service stopped gracefully")
}

func listenAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
