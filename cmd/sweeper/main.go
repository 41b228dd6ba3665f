package main

import (
	"allocation-service/config"
	"allocation-service/internal/pincode"
	"allocation-service/internal/repository"
	"allocation-service/internal/reservation"
	"allocation-service/internal/sweeper"
	"allocation-service/internal/warehouse"
	"context"
	"fmt"
	"os"

	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/database"
	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/sweeper/main.go [stale|refresh|all]")
		fmt.Println("  stale   - release held reservations older than RESERVATION_MAX_AGE")
		fmt.Println("  refresh - reload warehouses and pincodes and report coverage gaps")
		fmt.Println("  all     - run every job once")
		os.Exit(1)
	}

	cfg := config.Load(log)

	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	store := repository.NewStore(repository.New(db))
	registry := warehouse.NewRegistry(store, log)
	directory := pincode.NewDirectory(store, registry, log)
	reservations := reservation.NewManager(store, log)

	scfg := sweeper.DefaultConfig()
	scfg.ReservationMaxAge = cfg.Sweeper.ReservationMaxAge
	svc := sweeper.NewService(reservations, nil, nil, scfg, log, registry, directory)

	ctx := context.Background()

	switch os.Args[1] {
	case "stale":
		log.Info("running stale reservation sweep")
		if err := svc.ReleaseStaleReservations(ctx); err != nil {
			log.Fatal("failed to release stale reservations", zap.Error(err))
		}
	case "refresh":
		log.Info("running reference refresh")
		if err := svc.RefreshReferenceData(ctx); err != nil {
			log.Fatal("failed to refresh reference data", zap.Error(err))
		}
		registry.CheckCoverage(directory.ZoneIDs())
	case "all":
		fallthrough
	default:
		log.Info("running full sweep")
		if err := svc.RunAll(ctx); err != nil {
			log.Fatal("failed to run full sweep", zap.Error(err))
		}
	}

	log.Info("sweep completed successfully")
}
