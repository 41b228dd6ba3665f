package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/database"

	"go.uber.org/zap"
)

type Config struct {
	Port          string
	GRPCPort      string
	StorageDriver string
	DB            DB
	Redis         Redis
	Cache         Cache
	Checkout      Checkout
	Sweeper       Sweeper
	Kafka         Kafka
	SMTP          SMTP
}

type DB struct {
	database.Config
}

type Redis struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type Cache struct {
	ZoneTTL         time.Duration
	AvailabilityTTL time.Duration
	MaxEntries      int
	BatchWindow     time.Duration
	MaxBatch        int
}

type Checkout struct {
	PaymentTimeout time.Duration
}

type Sweeper struct {
	ReservationMaxAge  time.Duration
	SweepInterval      time.Duration
	CacheSweepInterval time.Duration
	RefreshInterval    time.Duration
}

type Kafka struct {
	Brokers       []string
	TopicEvents   string
	TopicPayments string
	GroupID       string
}

type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	AlertTo  []string
}

func (c *Config) UsesPostgres() bool { return c.StorageDriver != "memory" }

func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

func (s SMTP) Enabled() bool { return s.Host != "" && len(s.AlertTo) > 0 }

func Load(log *zap.Logger) *Config {
	cfg := &Config{
		Port:          getEnv("APP_PORT", log),
		GRPCPort:      getEnvDefault("GRPC_PORT", "50061"),
		StorageDriver: getEnvDefault("STORAGE_DRIVER", "postgres"),
		Redis: Redis{
			Enabled:  os.Getenv("REDIS_ENABLED") == "true",
			Addr:     getEnvDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       atoiDefault(os.Getenv("REDIS_DB"), 0),
		},
		Cache: Cache{
			ZoneTTL:         parseDurationDefault(os.Getenv("CACHE_ZONE_TTL"), time.Hour),
			AvailabilityTTL: parseDurationDefault(os.Getenv("CACHE_AVAILABILITY_TTL"), 15*time.Minute),
			MaxEntries:      atoiDefault(os.Getenv("CACHE_MAX_ENTRIES"), 1000),
			BatchWindow:     parseDurationDefault(os.Getenv("CACHE_BATCH_WINDOW"), 100*time.Millisecond),
			MaxBatch:        atoiDefault(os.Getenv("CACHE_MAX_BATCH"), 10),
		},
		Checkout: Checkout{
			PaymentTimeout: parseDurationDefault(os.Getenv("PAYMENT_TIMEOUT"), 15*time.Minute),
		},
		Sweeper: Sweeper{
			ReservationMaxAge:  parseDurationDefault(os.Getenv("RESERVATION_MAX_AGE"), 30*time.Minute),
			SweepInterval:      parseDurationDefault(os.Getenv("SWEEP_INTERVAL"), 5*time.Minute),
			CacheSweepInterval: parseDurationDefault(os.Getenv("CACHE_SWEEP_INTERVAL"), 5*time.Minute),
			RefreshInterval:    parseDurationDefault(os.Getenv("REFERENCE_REFRESH_INTERVAL"), 10*time.Minute),
		},
		Kafka: Kafka{
			Brokers:       splitAndTrim(os.Getenv("KAFKA_BROKERS")),
			TopicEvents:   getEnvDefault("KAFKA_TOPIC_EVENTS", "checkout-events"),
			TopicPayments: getEnvDefault("KAFKA_TOPIC_PAYMENTS", "payment-signals"),
			GroupID:       getEnvDefault("KAFKA_GROUP_ID", "allocation-service"),
		},
		SMTP: SMTP{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     atoiDefault(os.Getenv("SMTP_PORT"), 465),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			AlertTo:  splitAndTrim(os.Getenv("ALERT_EMAIL_TO")),
		},
	}

	// В режиме memory база не нужна
	if cfg.UsesPostgres() {
		cfg.DB = LoadDB(log)
	}
	if cfg.Sweeper.ReservationMaxAge <= cfg.Checkout.PaymentTimeout {
		log.Warn("RESERVATION_MAX_AGE не превышает PAYMENT_TIMEOUT: sweeper может освободить резерв ожидающей оплаты",
			zap.Duration("reservation_max_age", cfg.Sweeper.ReservationMaxAge),
			zap.Duration("payment_timeout", cfg.Checkout.PaymentTimeout),
		)
	}
	return cfg
}

// LoadDB читает только настройки БД (для cmd/migrate и cmd/sweeper)
func LoadDB(log *zap.Logger) DB {
	return DB{
		Config: database.Config{
			Host:     getEnv("DB_HOST", log),
			Port:     getEnv("DB_PORT", log),
			User:     getEnv("DB_USER", log),
			Password: getEnv("DB_PASSWORD", log),
			Name:     getEnv("DB_NAME", log),
			SSLMode:  getEnv("DB_SSLMODE", log),
		},
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return def
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseDurationDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
