// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	// SwaggerEnabled serves the API docs outside development.
	SwaggerEnabled bool `yaml:"swagger_enabled" env:"SWAGGER_ENABLED" env-default:"false"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	Postgres    PostgresConfig `yaml:"postgres"`

	// AppURL is the public origin of the web front-end; email links and
	// verify-email redirects point at it.
	AppURL             string   `yaml:"app_url" env:"APP_URL" env-default:"http://localhost:3000"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`

	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"dev-secret"`
	JWTTTL    time.Duration `yaml:"jwt_ttl" env:"JWT_TTL" env-default:"168h"`

	ResetTokenTTL        time.Duration `yaml:"reset_token_ttl" env:"RESET_TOKEN_TTL" env-default:"1h"`
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl" env:"VERIFICATION_TOKEN_TTL" env-default:"24h"`

	SMTPHost     string `yaml:"smtp_host" env:"SMTP_HOST" env-default:"localhost"`
	SMTPPort     string `yaml:"smtp_port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser     string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	SMTPFrom     string `yaml:"smtp_from" env:"SMTP_FROM" env-default:"Mirror of Dreams <no-reply@mirrorofdreams.app>"`
	SMTPUseTLS   bool   `yaml:"smtp_use_tls" env:"SMTP_USE_TLS" env-default:"false"`

	AdminSecret string `yaml:"admin_secret" env:"ADMIN_SECRET"`
	AdminAPIURL string `yaml:"admin_api_url" env:"ADMIN_API_URL" env-default:"http://localhost:8080"`

	RateLimitRequests int           `yaml:"rate_limit_requests" env:"RATE_LIMIT_REQUESTS" env-default:"5"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window" env:"RATE_LIMIT_WINDOW" env-default:"15m"`
	RedisURL          string        `yaml:"redis_url" env:"REDIS_URL"`

	LLM           LLMConfig           `yaml:"llm"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Archive       ArchiveConfig       `yaml:"archive"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" env:"PSQL_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"PSQL_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"PSQL_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"PSQL_PASSWORD" env-default:"postgres"`
	DBName   string `yaml:"db_name" env:"PSQL_DB_NAME" env-default:"mirror_of_dreams"`
}

type LLMConfig struct {
	APIURL    string        `yaml:"api_url" env:"LLM_API_URL" env-default:"https://api.anthropic.com"`
	APIKey    string        `yaml:"api_key" env:"LLM_API_KEY"`
	Model     string        `yaml:"model" env:"LLM_MODEL" env-default:"claude-sonnet-4-5"`
	MaxTokens int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2000"`
	Timeout   time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"60s"`
}

type ConsolidationConfig struct {
	BatchSize  int `yaml:"batch_size" env:"CONSOLIDATION_BATCH_SIZE" env-default:"50"`
	BatchLimit int `yaml:"batch_limit" env:"CONSOLIDATION_BATCH_LIMIT" env-default:"1000"`
}

type ArchiveConfig struct {
	Region string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	Bucket string `yaml:"bucket" env:"ARCHIVE_BUCKET"`
}

// Load reads the optional YAML file named by CONFIG_PATH and then the
// environment. Environment variables win over the file.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.Postgres.URL()
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")

	return &cfg, nil
}

// MustLoad is Load for main packages.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) ServeSwagger() bool {
	return c.IsDevelopment() || c.SwaggerEnabled
}

func (p PostgresConfig) URL() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Host + ":" + p.Port,
		Path:   p.DBName,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}
