package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации сервиса.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Experts  []ExpertConfig `mapstructure:"experts" validate:"dive"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера консоли.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GRPCConfig описывает gRPC ReviewService.
type GRPCConfig struct {
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=1"`
	MinConns int32  `mapstructure:"min_conns" validate:"gte=0,ltefield=MaxConns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub и множества состояния).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит путь к публичному RSA ключу консоли и bcrypt-хэш ключа экспертов.
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	// Пустой хэш отключает проверку x-trustgate-key на gRPC
	APIKeyHash string `mapstructure:"api_key_hash"`
	PublicKey  []byte
}

// EngineConfig — пороги движка надежности и параметры устойчивости вызовов экспертов.
type EngineConfig struct {
	MinConfidence    float64            `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	CriticalAgents   []string           `mapstructure:"critical_agents"`
	AgentReliability map[string]float64 `mapstructure:"agent_reliability" validate:"dive,gte=0"`
	DetectConflicts  bool               `mapstructure:"detect_conflicts"`
	MinRiskGap       int                `mapstructure:"min_risk_gap" validate:"gte=1,lte=4"`

	AuditBufferSize    int           `mapstructure:"audit_buffer_size" validate:"gte=1"`
	AuditBatchSize     int           `mapstructure:"audit_batch_size" validate:"gte=1"`
	AuditFlushInterval time.Duration `mapstructure:"audit_flush_interval" validate:"gt=0"`

	// Вызовы экспертов
	ExpertTimeout time.Duration `mapstructure:"expert_timeout" validate:"gt=0"`
	RetryAttempts uint          `mapstructure:"retry_attempts" validate:"gte=1"`
	RateLimit     float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst     int           `mapstructure:"rate_burst" validate:"gte=0"`

	// Настройки Circuit Breaker, по одному на тип эксперта
	CBMaxRequests         uint32        `mapstructure:"cb_max_requests"`
	CBInterval            time.Duration `mapstructure:"cb_interval"`
	CBTimeout             time.Duration `mapstructure:"cb_timeout"`
	CBConsecutiveFailures uint32        `mapstructure:"cb_consecutive_failures" validate:"gte=1"`
}

// ExpertConfig — адрес удаленного эксперта.
type ExpertConfig struct {
	Type string `mapstructure:"type" validate:"required"`
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	return loadFrom(v)
}

// LoadConfigFile читает конфигурацию из явного пути (флаг --config).
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return loadFrom(v)
}

func loadFrom(v *viper.Viper) (*Config, error) {
	// ENGINE_MIN_CONFIDENCE=0.8 перекроет engine.min_confidence
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// PEM-ключ может прийти напрямую в ENV (Docker/K8s), иначе читаем файл
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("engine.min_confidence", 0.7)
	v.SetDefault("engine.critical_agents", []string{"security_analysis"})
	v.SetDefault("engine.detect_conflicts", true)
	v.SetDefault("engine.min_risk_gap", 2)
	v.SetDefault("engine.audit_buffer_size", 10000)
	v.SetDefault("engine.audit_batch_size", 100)
	v.SetDefault("engine.audit_flush_interval", 500*time.Millisecond)
	v.SetDefault("engine.expert_timeout", 10*time.Second)
	v.SetDefault("engine.retry_attempts", 3)
	v.SetDefault("engine.rate_limit", 100)
	v.SetDefault("engine.rate_burst", 20)
	v.SetDefault("engine.cb_max_requests", 3)
	v.SetDefault("engine.cb_interval", 5*time.Second)
	v.SetDefault("engine.cb_timeout", 30*time.Second)
	v.SetDefault("engine.cb_consecutive_failures", 5)
}

func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
