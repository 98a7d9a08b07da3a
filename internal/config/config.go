package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
	StorageDriverRedis    = "redis"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	RabbitMQ   `yaml:"rabbitmq"`
	Tokens     `yaml:"tokens"`
	Auth       `yaml:"auth"`
	Cookies    `yaml:"cookies"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_SERVER_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RefreshMiddleware turns on transparent session refresh for every route.
	RefreshMiddleware bool `yaml:"refresh_middleware" env:"HTTP_SERVER_REFRESH_MIDDLEWARE" env-default:"false"`
}

type Storage struct {
	Driver        string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	RefreshTokens string `yaml:"refresh_tokens" env:"STORAGE_REFRESH_TOKENS" env-default:"postgres"`
}

type Postgres struct {
	Host           string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port           int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"POSTGRES_USER"`
	Password       string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName         string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode        string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"POSTGRES_MIGRATE_ON_START" env-default:"true"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// RabbitMQ publishing is disabled when URL is empty.
type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env:"RABBITMQ_QUEUE_NAME" env-default:"auth_events"`
}

type Tokens struct {
	Secret          string        `yaml:"secret" env:"TOKENS_SECRET" env-required:"true"`
	Algorithm       string        `yaml:"algorithm" env:"TOKENS_ALGORITHM" env-default:"HS256"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"TOKENS_ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"TOKENS_REFRESH_TOKEN_TTL" env-default:"168h"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"TOKENS_CLEANUP_INTERVAL" env-default:"1h"`
}

type Auth struct {
	BcryptCost       int    `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST" env-default:"10"`
	UnifyLoginErrors bool   `yaml:"unify_login_errors" env:"AUTH_UNIFY_LOGIN_ERRORS" env-default:"false"`
	PhoneRegion      string `yaml:"phone_region" env:"AUTH_PHONE_REGION"`
}

type Cookies struct {
	Secure   bool   `yaml:"secure" env:"COOKIES_SECURE" env-default:"true"`
	SameSite string `yaml:"same_site" env:"COOKIES_SAME_SITE" env-default:"lax"`
	Domain   string `yaml:"domain" env:"COOKIES_DOMAIN"`
}

// MustLoad reads the config file named by -config or CONFIG_PATH and panics
// when it is missing or invalid.
func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to read config: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Storage.RefreshTokens {
	case StorageDriverPostgres, StorageDriverRedis, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage.refresh_tokens %q", c.Storage.RefreshTokens)
	}

	if c.Storage.RefreshTokens == StorageDriverPostgres && c.Storage.Driver != StorageDriverPostgres {
		return fmt.Errorf("storage.refresh_tokens %q requires storage.driver %q", StorageDriverPostgres, StorageDriverPostgres)
	}

	if c.Storage.Driver == StorageDriverPostgres && (c.Postgres.User == "" || c.Postgres.DBName == "") {
		return fmt.Errorf("postgres.user and postgres.dbname are required")
	}

	if c.Tokens.AccessTokenTTL <= 0 || c.Tokens.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	if c.Tokens.CleanupInterval < 0 {
		return fmt.Errorf("tokens.cleanup_interval must not be negative")
	}

	return nil
}

// fetchConfigPath prefers the -config flag over the CONFIG_PATH env variable.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
