// Файл: config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type ServerConfig struct {
	Port string `validate:"required"`
}

type JWTConfig struct {
	SecretKey      string `validate:"required"`
	AccessTokenTTL time.Duration
}

// GraphConfig — доступ к Microsoft Graph (app-only, client credentials).
// Если ClientID/ClientSecret пустые — обогащение имён деградирует без ошибок.
type GraphConfig struct {
	BaseURL      string `validate:"required,url"`
	TokenURL     string `validate:"omitempty,url"`
	ClientID     string
	ClientSecret string
}

// DataverseConfig — доступ к Dataverse Web API (система учёта клиентов и оборудования).
type DataverseConfig struct {
	BaseURL      string `validate:"required,url"`
	TokenURL     string `validate:"required,url"`
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
}

type RedisConfig struct {
	Address  string
	Password string
}

// CacheConfig — необязательный кэш карты обогащения (tenant+upn -> displayName).
// Backend: "" (выключен), "redis" или "memory".
type CacheConfig struct {
	Backend string `validate:"omitempty,oneof=redis memory"`
	TTL     time.Duration
	MaxSize int
}

type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Graph     GraphConfig
	Dataverse DataverseConfig
	Redis     RedisConfig
	Cache     CacheConfig
}

// New читает конфигурацию из окружения. Загрузка .env выполняется
// один раз на старте приложения, до первого обращения сюда.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET_KEY", "9A4D2AD385B2BAA8DC78F558B548F"),
			AccessTokenTTL: time.Hour * 24,
		},
		Graph: GraphConfig{
			BaseURL:      getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
			TokenURL:     getEnv("GRAPH_TOKEN_URL", ""),
			ClientID:     getEnv("GRAPH_CLIENT_ID", ""),
			ClientSecret: getEnv("GRAPH_CLIENT_SECRET", ""),
		},
		Dataverse: DataverseConfig{
			BaseURL:      getEnv("DATAVERSE_BASE_URL", "https://org.crm.dynamics.com/api/data/v9.2"),
			TokenURL:     getEnv("DATAVERSE_TOKEN_URL", "https://login.microsoftonline.com/common/oauth2/v2.0/token"),
			ClientID:     getEnv("DATAVERSE_CLIENT_ID", ""),
			ClientSecret: getEnv("DATAVERSE_CLIENT_SECRET", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Cache: CacheConfig{
			Backend: getEnv("ENRICHMENT_CACHE_BACKEND", ""),
			TTL:     time.Minute * time.Duration(getEnvInt("ENRICHMENT_CACHE_TTL_MIN", 10)),
			MaxSize: getEnvInt("ENRICHMENT_CACHE_MAX_SIZE", 10000),
		},
	}
}

// Validate проверяет обязательные поля конфигурации до старта сервера.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
