package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var defaultModels = map[string]string{
	ProviderGroq:   "llama-3.3-70b-versatile",
	ProviderOpenAI: "gpt-4o-mini",
	ProviderGemini: "gemini-1.5-flash",
}

type Config struct {
	LLMProvider    string        `env:"LLM_PROVIDER" envDefault:"groq"`
	GroqAPIKey     string        `env:"GROQ_API_KEY"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	GeminiAPIKey   string        `env:"GEMINI_API_KEY"`
	LLMModel       string        `env:"LLM_MODEL"`
	LLMBaseURL     string        `env:"LLM_BASE_URL"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"45s"`
	LLMTemp        float64       `env:"LLM_TEMPERATURE" envDefault:"0.2"`
	LLMMaxTokens   int64         `env:"LLM_MAX_TOKENS" envDefault:"2048"`
	MaxRepairs     int           `env:"MAX_REPAIR_ATTEMPTS" envDefault:"2"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	DBHost         string        `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort         int           `env:"DB_PORT" envDefault:"3306"`
	DBUser         string        `env:"DB_USER" envDefault:"root"`
	DBPassword     string        `env:"DB_PASSWORD"`
	DBName         string        `env:"DB_NAME" envDefault:"diagram_chat"`
	ServerHost     string        `env:"SERVER_HOST"`
	ServerPort     int           `env:"SERVER_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5m"`
	MaxSessions    int           `env:"MAX_ACTIVE_SESSIONS" envDefault:"1024"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads .env from the working directory if present and then parses the
// process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, continuing with environment variables")
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	if _, ok := defaultModels[c.LLMProvider]; !ok {
		return fmt.Errorf("invalid LLM_PROVIDER %q: must be one of groq, openai, gemini", c.LLMProvider)
	}
	if c.LLMTimeout <= 0 {
		return errors.New("LLM_TIMEOUT must be positive")
	}
	if c.MaxRepairs < 0 {
		return errors.New("MAX_REPAIR_ATTEMPTS cannot be negative")
	}
	if c.MaxSessions <= 0 {
		return errors.New("MAX_ACTIVE_SESSIONS must be positive")
	}
	return nil
}

// APIKey is the credential for the configured provider, empty when unset.
func (c Config) APIKey() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return c.GroqAPIKey
	}
}

func (c Config) Model() string {
	if c.LLMModel != "" {
		return c.LLMModel
	}
	return defaultModels[c.LLMProvider]
}

// MySQLDSN returns DATABASE_URL when set, otherwise a DSN assembled from the
// DB_* settings.
func (c Config) MySQLDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	dsn := mysql.Config{
		User:                 c.DBUser,
		Passwd:               c.DBPassword,
		Net:                  "tcp",
		Addr:                 net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		DBName:               c.DBName,
		ParseTime:            true,
		AllowNativePasswords: true,
		// Report matched rather than changed rows; the stores treat zero
		// affected rows as a missing session.
		ClientFoundRows: true,
		Params:          map[string]string{"charset": "utf8mb4"},
	}
	return dsn.FormatDSN()
}

func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.ServerHost, strconv.Itoa(c.ServerPort))
}
