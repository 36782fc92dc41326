package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go-fundo-ops/pkg/database"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Alerts     AlertConfig      `mapstructure:"alerts"`
	Field      FieldConfig      `mapstructure:"field"`
	Risk       RiskConfig       `mapstructure:"risk"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	Sheets     SheetsConfig     `mapstructure:"sheets"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Timezone       string        `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Port     string `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminEmail    string        `mapstructure:"admin_email"`
	AdminPassword string        `mapstructure:"admin_password"`
}

// AlertConfig holds the dashboard thresholds a deployment may tune.
type AlertConfig struct {
	TrapMTDThreshold   float64 `mapstructure:"trap_mtd_threshold"`
	LowStockMultiplier float64 `mapstructure:"low_stock_multiplier"`
	ExpiringWindowDays int     `mapstructure:"expiring_window_days"`
}

// FieldConfig holds agronomic constants.
type FieldConfig struct {
	RacimosPorTanda    int `mapstructure:"racimos_por_tanda"`
	TrapEvaluationDays int `mapstructure:"trap_evaluation_days"`
}

type RiskConfig struct {
	ModelPath string `mapstructure:"model_path"`
}

type MongoDBConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"db_name"`
}

type SheetsConfig struct {
	CredentialsPath string `mapstructure:"credentials_path"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
}

// QueueConfig is only read by the device CLI.
type QueueConfig struct {
	Backend   string        `mapstructure:"backend"`
	Path      string        `mapstructure:"path"`
	ServerURL string        `mapstructure:"server_url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SchedulingConfig struct {
	DigestCron string `mapstructure:"digest_cron"`
}

// env names kept from the first deployments; viper keys map onto them.
var envBindings = map[string]string{
	"server.port":                 "APP_PORT",
	"server.request_timeout":      "REQUEST_TIMEOUT",
	"server.timezone":             "TIMEZONE",
	"database.url":                "DATABASE_URL",
	"database.host":               "DB_HOST",
	"database.user":               "DB_USER",
	"database.password":           "DB_PASSWORD",
	"database.name":               "DB_NAME",
	"database.port":               "DB_PORT",
	"database.debug":              "DB_DEBUG",
	"auth.jwt_secret":             "JWT_SECRET",
	"auth.token_ttl":              "JWT_TTL",
	"auth.admin_email":            "ADMIN_EMAIL",
	"auth.admin_password":         "ADMIN_PASSWORD",
	"alerts.trap_mtd_threshold":   "ALERT_TRAP_MTD_THRESHOLD",
	"alerts.low_stock_multiplier": "ALERT_LOW_STOCK_MULTIPLIER",
	"alerts.expiring_window_days": "ALERT_EXPIRING_WINDOW_DAYS",
	"field.racimos_por_tanda":     "RACIMOS_POR_TANDA",
	"field.trap_evaluation_days":  "TRAP_EVALUATION_DAYS",
	"risk.model_path":             "RISK_MODEL_PATH",
	"mongodb.uri":                 "MONGODB_URI",
	"mongodb.db_name":             "MONGODB_DB_NAME",
	"sheets.credentials_path":     "GOOGLE_SHEETS_CREDENTIALS_PATH",
	"sheets.spreadsheet_id":       "GOOGLE_SHEETS_SPREADSHEET_ID",
	"queue.backend":               "QUEUE_BACKEND",
	"queue.path":                  "QUEUE_PATH",
	"queue.server_url":            "SYNC_SERVER_URL",
	"queue.token":                 "SYNC_TOKEN",
	"queue.timeout":               "SYNC_TIMEOUT",
	"scheduling.digest_cron":      "ALERT_DIGEST_CRON",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.timezone", "America/Lima")
	v.SetDefault("database.port", "5432")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_email", "admin@fundo.local")
	v.SetDefault("auth.admin_password", "admin123")
	v.SetDefault("alerts.trap_mtd_threshold", 0.5)
	v.SetDefault("alerts.low_stock_multiplier", 1.0)
	v.SetDefault("alerts.expiring_window_days", 30)
	v.SetDefault("field.racimos_por_tanda", 100)
	v.SetDefault("field.trap_evaluation_days", 7)
	v.SetDefault("mongodb.db_name", "fundo")
	v.SetDefault("queue.backend", "sqlite")
	v.SetDefault("queue.path", "fieldsync.db")
	v.SetDefault("queue.server_url", "http://localhost:3000")
	v.SetDefault("queue.timeout", 30*time.Second)
	v.SetDefault("scheduling.digest_cron", "0 6 * * *")
}

// Load reads an optional .env file, an optional CONFIG_FILE and the
// environment, in increasing order of precedence.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		// missing .env is fine when the environment carries everything
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Server.Timezone, err)
	}
	if c.Alerts.TrapMTDThreshold < 0 {
		return errors.New("ALERT_TRAP_MTD_THRESHOLD must be >= 0")
	}
	if c.Alerts.LowStockMultiplier < 0 {
		return errors.New("ALERT_LOW_STOCK_MULTIPLIER must be >= 0")
	}
	if c.Alerts.ExpiringWindowDays < 0 {
		return errors.New("ALERT_EXPIRING_WINDOW_DAYS must be >= 0")
	}
	if c.Field.RacimosPorTanda <= 0 {
		return errors.New("RACIMOS_POR_TANDA must be > 0")
	}
	if c.Field.TrapEvaluationDays <= 0 {
		return errors.New("TRAP_EVALUATION_DAYS must be > 0")
	}
	switch c.Queue.Backend {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("QUEUE_BACKEND %q: want sqlite or badger", c.Queue.Backend)
	}
	return nil
}

// Location returns the farm's timezone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseSettings is the connection subset shared by the server and the CLIs.
func (c *Config) DatabaseSettings() database.Settings {
	return database.Settings{
		URL:      c.Database.URL,
		Host:     c.Database.Host,
		User:     c.Database.User,
		Password: c.Database.Password,
		Name:     c.Database.Name,
		Port:     c.Database.Port,
		TimeZone: c.Server.Timezone,
		Debug:    c.Database.Debug,
	}
}
