package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type RedisConfig struct {
	Addr     string // пусто — кеш слотов выключен
	Password string
	DB       int
	SlotTTL  time.Duration
}

type KafkaConfig struct {
	Brokers []string // пусто — события только логируются
	Topic   string
}

type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string // host:port
	SampleRatio  float64
}

type PolicyConfig struct {
	CancellationNotice time.Duration
	SlotStep           time.Duration
	MaxSearchDays      int
	MaxCalendarDays    int
}

type AppConfig struct {
	Env             string
	GRPCAddr        string
	ShutdownTimeout time.Duration

	DB     *DBConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
	OTel   OTelConfig
	Policy PolicyConfig
}

// Load читает .env (если он есть) и переменные окружения.
func Load() (*AppConfig, error) {
	// .env необязателен
	_ = godotenv.Load(".env")

	dbCfg, err := LoadDBConfig()
	if err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		Env:             getEnv("ENV", "development"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":50051"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		DB:              dbCfg,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			SlotTTL:  getEnvDuration("SLOT_CACHE_TTL", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: SplitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "appointments.events"),
		},
		OTel: OTelConfig{
			Enabled:      getEnvBool("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "booking-core"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317"),
			SampleRatio:  getEnvFloat("OTEL_SAMPLING_RATIO", 1),
		},
		Policy: PolicyConfig{
			CancellationNotice: getEnvDuration("CANCELLATION_NOTICE", 24*time.Hour),
			SlotStep:           getEnvDuration("SLOT_STEP", 15*time.Minute),
			MaxSearchDays:      getEnvInt("SLOT_MAX_SEARCH_DAYS", 30),
			MaxCalendarDays:    getEnvInt("CALENDAR_MAX_DAYS", 90),
		},
	}

	if cfg.OTel.SampleRatio < 0 || cfg.OTel.SampleRatio > 1 {
		return nil, fmt.Errorf("invalid OTEL_SAMPLING_RATIO: %v", cfg.OTel.SampleRatio)
	}
	if cfg.Kafka.Topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}

	return cfg, nil
}

// SplitList разбирает список через запятую, пропуская пустые элементы.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
