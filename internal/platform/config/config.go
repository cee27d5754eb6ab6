package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type HTTPConfig struct {
	Addr      string
	APIPrefix string
}

type GRPCConfig struct {
	Addr string
}

type DBConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Migrate  bool
}

// DSN returns DATABASE_URL when set, otherwise a URL built from the DB_* parts.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

type AppConfig struct {
	ServiceName  string
	Env          string
	LogLevel     string
	StoreBackend string
	JWTSecret    string
	NATSURL      string
	CORSOrigins  string
	HTTP         HTTPConfig
	GRPC         GRPCConfig
	DB           DBConfig
}

func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads .env (if present) and the environment.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("SERVICE_NAME", "social-interaction")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":3005")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "db")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "social_db")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MIGRATE", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.AutomaticEnv()

	cfg := AppConfig{
		ServiceName:  strings.TrimSpace(v.GetString("SERVICE_NAME")),
		Env:          strings.TrimSpace(v.GetString("APP_ENV")),
		LogLevel:     strings.TrimSpace(v.GetString("LOG_LEVEL")),
		StoreBackend: strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
		JWTSecret:    strings.TrimSpace(v.GetString("JWT_SECRET")),
		NATSURL:      strings.TrimSpace(v.GetString("NATS_URL")),
		CORSOrigins:  v.GetString("CORS_ALLOWED_ORIGINS"),
		HTTP: HTTPConfig{
			Addr:      strings.TrimSpace(v.GetString("HTTP_ADDR")),
			APIPrefix: strings.TrimRight(strings.TrimSpace(v.GetString("API_PREFIX")), "/"),
		},
		GRPC: GRPCConfig{
			Addr: strings.TrimSpace(v.GetString("GRPC_ADDR")),
		},
		DB: DBConfig{
			URL:      strings.TrimSpace(v.GetString("DATABASE_URL")),
			Host:     strings.TrimSpace(v.GetString("DB_HOST")),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     strings.TrimSpace(v.GetString("DB_NAME")),
			SSLMode:  strings.TrimSpace(v.GetString("DB_SSLMODE")),
			Migrate:  v.GetBool("DB_MIGRATE"),
		},
	}
	return cfg, cfg.Validate()
}

func (c AppConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("SERVICE_NAME is required")
	}
	switch c.StoreBackend {
	case BackendPostgres:
	case BackendMemory:
		if c.IsProduction() {
			return errors.New("STORE_BACKEND=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StoreBackend == BackendPostgres && c.DB.URL == "" {
		if c.DB.Host == "" || c.DB.Name == "" {
			return errors.New("DB_HOST and DB_NAME are required")
		}
		if c.DB.Port <= 0 {
			return errors.New("DB_PORT must be positive")
		}
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	return nil
}
