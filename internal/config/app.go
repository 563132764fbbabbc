package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig holds application-level configuration.
type AppConfig struct {
	HTTP      HTTPConfig
	Redis     RedisConfig
	WhatsApp  WhatsAppConfig
	Secrets   SecretsConfig
	AppConfig AppConfigSettings
	Notifier  NotifierSettings
	Timezone  string
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int

	// ElastiCache-specific settings
	ClusterMode   bool
	SentinelAddrs []string
	MasterName    string
}

// WhatsApp client drivers.
const (
	DriverWhatsmeow = "whatsmeow"
	DriverLog       = "log"
)

// Credential store modes.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
)

// WhatsAppConfig holds the chat network client settings.
type WhatsAppConfig struct {
	Driver       string
	StoreMode    string
	AuthDir      string
	PairingCache string
	CountryCode  string
}

// SecretsConfig names secrets resolved from AWS Secrets Manager.
type SecretsConfig struct {
	RedisSecretName string
}

// AppConfigSettings holds AWS AppConfig settings.
type AppConfigSettings struct {
	Endpoint string
	Profile  string
}

// NotifierSettings points at a local notifier policy file.
type NotifierSettings struct {
	PolicyFile string
}

// LoadFromEnv loads configuration from environment variables with sensible defaults.
func LoadFromEnv() (*AppConfig, error) {
	redisAddr := getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	if elasticacheEndpoint := os.Getenv("ELASTICACHE_ENDPOINT"); elasticacheEndpoint != "" {
		redisAddr = elasticacheEndpoint
	}

	redisCfg := RedisConfig{
		Addr:         redisAddr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           getEnvInt("REDIS_DB", 0),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: 2,
	}

	if os.Getenv("ELASTICACHE_CLUSTER_MODE") == "true" {
		redisCfg.ClusterMode = true
	}

	if sentinelAddrs := os.Getenv("ELASTICACHE_SENTINEL_ADDRS"); sentinelAddrs != "" {
		redisCfg.SentinelAddrs = strings.Split(sentinelAddrs, ",")
		redisCfg.MasterName = os.Getenv("ELASTICACHE_MASTER_NAME")
	}

	authDir := getEnvOrDefault("WHATSAPP_AUTH_DIR", "whatsapp-auth")

	cfg := &AppConfig{
		HTTP: HTTPConfig{
			Addr:            getEnvOrDefault("HTTP_ADDR", ":3000"),
			AllowedOrigins:  splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: redisCfg,
		WhatsApp: WhatsAppConfig{
			Driver:       getEnvOrDefault("WHATSAPP_DRIVER", DriverWhatsmeow),
			StoreMode:    getEnvOrDefault("WHATSAPP_STORE", StoreFile),
			AuthDir:      authDir,
			PairingCache: getEnvOrDefault("WHATSAPP_PAIRING_CACHE", authDir+"/qrcode.txt"),
			CountryCode:  getEnvOrDefault("WHATSAPP_COUNTRY_CODE", "62"),
		},
		Secrets: SecretsConfig{
			RedisSecretName: os.Getenv("REDIS_SECRET_NAME"),
		},
		AppConfig: AppConfigSettings{
			Endpoint: os.Getenv("APPCONFIG_ENDPOINT"),
			Profile:  getEnvOrDefault("APPCONFIG_PROFILE", "notifier"),
		},
		Notifier: NotifierSettings{
			PolicyFile: os.Getenv("NOTIFIER_CONFIG"),
		},
		Timezone: getEnvOrDefault("APP_TIMEZONE", "Asia/Jakarta"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves the configured time zone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
