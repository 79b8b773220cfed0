// Package config provides application configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file named by CONFIG_FILE, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	App      AppConfig      `yaml:"app"`
	Auth     AuthConfig     `yaml:"auth"`
	PDF      PDFConfig      `yaml:"pdf"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout"`  // seconds
	// CORSOrigins applies to /api/ routes only.
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL connection settings. DSN, when set, wins
// over the discrete fields.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname"`
	SSLMode      string `yaml:"sslmode"`
	Debug        bool   `yaml:"debug"`
	ConnectTries int    `yaml:"connect_tries"`
}

type AppConfig struct {
	Dev        bool   `yaml:"dev"`
	Migrations bool   `yaml:"migrations"`
	BaseURL    string `yaml:"base_url"`
}

type AuthConfig struct {
	SessionSecret string `yaml:"session_secret"`
	SecureCookies bool   `yaml:"secure_cookies"`
	// ProfileCacheTTL is in seconds; 0 disables the cache.
	ProfileCacheTTL int `yaml:"profile_cache_ttl"`
}

type PDFConfig struct {
	StoragePath      string `yaml:"storage_path"`
	ExpiresSeconds   int    `yaml:"expires_seconds"`
	ConverterURL     string `yaml:"converter_url"`
	ConverterTimeout int    `yaml:"converter_timeout"` // seconds
	CleanupDays      int    `yaml:"cleanup_days"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// KeyValueDSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) KeyValueDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ConnString prefers the explicit DSN.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return d.KeyValueDSN()
}

func (s ServerConfig) Timeouts() (read, write, idle time.Duration) {
	return time.Duration(s.ReadTimeout) * time.Second,
		time.Duration(s.WriteTimeout) * time.Second,
		time.Duration(s.IdleTimeout) * time.Second
}

func (p PDFConfig) Expiry() time.Duration {
	return time.Duration(p.ExpiresSeconds) * time.Second
}

// Defaults are the values used for local development.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15,
			WriteTimeout: 30,
			IdleTimeout:  60,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "billing",
			Password:     "billing",
			DBName:       "billing",
			SSLMode:      "disable",
			ConnectTries: 10,
		},
		App: AppConfig{Dev: true, BaseURL: "http://localhost:8080"},
		Auth: AuthConfig{
			SessionSecret:   "devsessionsecret",
			ProfileCacheTTL: 300,
		},
		PDF: PDFConfig{
			StoragePath:      "./tmp/pdfs",
			ExpiresSeconds:   3600,
			ConverterTimeout: 30,
			CleanupDays:      7,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.CORSOrigins = getEnvList("CORS_ORIGINS", c.Server.CORSOrigins)

	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.Debug = getEnvBool("DB_DEBUG", c.Database.Debug)
	c.Database.ConnectTries = getEnvInt("DB_CONNECT_TRIES", c.Database.ConnectTries)

	c.App.Dev = getEnvBool("DEV", c.App.Dev)
	c.App.Migrations = getEnvBool("MIGRATIONS", c.App.Migrations)
	c.App.BaseURL = getEnv("BASE_URL", c.App.BaseURL)

	c.Auth.SessionSecret = getEnv("SESSION_SECRET", c.Auth.SessionSecret)
	c.Auth.SecureCookies = getEnvBool("SECURE_COOKIES", c.Auth.SecureCookies)
	c.Auth.ProfileCacheTTL = getEnvInt("PROFILE_CACHE_TTL", c.Auth.ProfileCacheTTL)

	c.PDF.StoragePath = getEnv("PDF_TEMP_STORAGE_PATH", c.PDF.StoragePath)
	c.PDF.ExpiresSeconds = getEnvInt("PDF_DOWNLOAD_EXPIRES_SECONDS", c.PDF.ExpiresSeconds)
	c.PDF.ConverterURL = getEnv("PDF_CONVERTER_URL", c.PDF.ConverterURL)
	c.PDF.ConverterTimeout = getEnvInt("PDF_CONVERTER_TIMEOUT", c.PDF.ConverterTimeout)
	c.PDF.CleanupDays = getEnvInt("PDF_CLEANUP_DAYS", c.PDF.CleanupDays)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server port is empty")
	}
	if c.PDF.ExpiresSeconds <= 0 {
		return fmt.Errorf("config: pdf expires_seconds must be positive, got %d", c.PDF.ExpiresSeconds)
	}
	if c.PDF.StoragePath == "" {
		return fmt.Errorf("config: pdf storage_path is empty")
	}
	if !c.App.Dev && c.Auth.SessionSecret == Defaults().Auth.SessionSecret {
		return fmt.Errorf("config: SESSION_SECRET must be set outside dev mode")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool accepts "1", "true", "yes" as true; any other non-empty value is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
