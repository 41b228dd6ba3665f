package main

import (
	"allocation-service/config"
	"allocation-service/internal/migrate"
	"allocation-service/internal/models"
	"allocation-service/internal/reference"
	"allocation-service/internal/repository"
	"context"
	"encoding/json"
	"os"

	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/database"
	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/logger"
	"go.uber.org/zap"

	"github.com/joho/godotenv"
)

// migrate [reference.json]
// Без аргумента только накатывает схему. С путём к файлу дополнительно
// загружает зоны, пинкоды, склады и каталог.
func main() {
	_ = godotenv.Load()
	if err := logger.Init(os.Getenv("ENV") == "development"); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	dbCfg := config.LoadDB(log)
	db := database.ConnectDBForMigration(&dbCfg.Config, log)
	defer database.CloseDB(db, log)

	ctx := context.Background()
	if err := migrate.MigrateAllocationDB(ctx, db, log, migrate.DefaultMigrateOptions()); err != nil {
		log.Fatal("Ошибка при выполнении миграции", zap.Error(err))
	}
	log.Info("Миграция успешно завершена")

	if len(os.Args) < 2 {
		return
	}
	path := os.Args[1]
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatal("Не удалось прочитать файл справочников", zap.String("path", path), zap.Error(err))
	}
	var data models.ReferenceData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Fatal("Некорректный JSON справочников", zap.String("path", path), zap.Error(err))
	}
	if err := reference.Validate(data); err != nil {
		log.Fatal("Справочники не прошли проверку", zap.Error(err))
	}
	if err := repository.NewStore(repository.New(db)).ImportReference(ctx, data); err != nil {
		log.Fatal("Ошибка загрузки справочников", zap.Error(err))
	}
	log.Info("Справочники загружены",
		zap.Int("zones", len(data.Zones)),
		zap.Int("pincodes", len(data.Pincodes)),
		zap.Int("warehouses", len(data.Warehouses)),
		zap.Int("products", len(data.Products)),
	)
}
