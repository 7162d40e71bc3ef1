package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	JWT      JWTConfig
	GPWebPay GPWebPayConfig
	Content  ContentConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Frontend FrontendConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	URL      string // Full database URL
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type SessionConfig struct {
	Secret       string
	GuestMaxAge  time.Duration
	SecureCookie bool
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SessionTTL    time.Duration
}

// GPWebPayConfig holds the merchant settings and key material for the card gateway.
// Keys are read from disk once in Load.
type GPWebPayConfig struct {
	MerchantNumber string
	RequestURL     string
	ResponseURL    string
	Currency       string
	Passphrase     string
	PrivateKeyPath string
	PublicKeyPath  string
	PrivateKey     []byte
	PublicKey      []byte
}

type ContentConfig struct {
	APIURL        string
	APIToken      string
	Timeout       time.Duration
	PriceCacheTTL time.Duration
}

type RedisConfig struct {
	URL string
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	APIURL   string
	Timeout  time.Duration
}

type FrontendConfig struct {
	PaymentResultURL string
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Host:           getEnv("HOST", "localhost"),
			Env:            getEnv("ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: parseDatabaseConfig(),
		Session: SessionConfig{
			Secret:       getEnv("SESSION_SECRET", "your-secret-key-change-in-production"),
			GuestMaxAge:  getEnvAsDuration("GUEST_SESSION_MAX_AGE", 30*24*time.Hour),
			SecureCookie: getEnvAsBool("SESSION_SECURE_COOKIE", false),
		},
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_SECRET", "access-secret-change-in-production"),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", "refresh-secret-change-in-production"),
			AccessTTL:     getEnvAsDuration("JWT_ACCESS_TTL", 30*time.Minute),
			RefreshTTL:    getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			SessionTTL:    time.Duration(getEnvAsInt("SESSION_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		},
		GPWebPay: GPWebPayConfig{
			MerchantNumber: getEnv("GP_MERCHANT_NUMBER", ""),
			RequestURL:     getEnv("GP_URL_PAY_REQUEST", "https://test.3dsecure.gpwebpay.com/pgw/order.do"),
			ResponseURL:    getEnv("GP_URL_PAY_RESPONSE", "http://localhost:8080/payment/return"),
			Currency:       getEnv("GP_CURRENCY", "978"),
			Passphrase:     getEnv("GP_PASSPHRASE", ""),
			PrivateKeyPath: getEnv("GP_PRIVATE_KEY_PATH", ""),
			PublicKeyPath:  getEnv("GP_PUBLIC_KEY_PATH", ""),
		},
		Content: ContentConfig{
			APIURL:        strings.TrimRight(getEnv("CONTENT_API_URL", "http://localhost:3333/api"), "/"),
			APIToken:      getEnv("CONTENT_API_TOKEN", ""),
			Timeout:       getEnvAsDuration("CONTENT_API_TIMEOUT", 5*time.Second),
			PriceCacheTTL: getEnvAsDuration("PRICE_CACHE_TTL", 60*time.Second),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CLIENT_ID", ""),
			APIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			Timeout:  getEnvAsDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
		Frontend: FrontendConfig{
			PaymentResultURL: getEnv("FRONTEND_PAYMENT_RESULT_URL", "http://localhost:3000/payment/result"),
		},
	}

	if err := config.GPWebPay.loadKeys(); err != nil {
		return nil, err
	}

	return config, nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *GPWebPayConfig) loadKeys() error {
	if c.PrivateKeyPath != "" {
		key, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("failed to read GP webpay private key: %w", err)
		}
		c.PrivateKey = key
	}
	if c.PublicKeyPath != "" {
		key, err := os.ReadFile(c.PublicKeyPath)
		if err != nil {
			return fmt.Errorf("failed to read GP webpay public key: %w", err)
		}
		c.PublicKey = key
	}
	return nil
}

func parseDatabaseConfig() DatabaseConfig {
	// Check if DATABASE_URL is provided
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL != "" {
		return parseDatabaseURL(databaseURL)
	}

	// Fall back to individual environment variables
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "excursion_booking"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func parseDatabaseURL(databaseURL string) DatabaseConfig {
	config := DatabaseConfig{
		URL: databaseURL,
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		// If parsing fails, return the URL as-is
		return config
	}

	config.Host = u.Hostname()
	if u.Port() != "" {
		config.Port, _ = strconv.Atoi(u.Port())
	} else {
		config.Port = 5432
	}

	if u.User != nil {
		config.User = u.User.Username()
		config.Password, _ = u.User.Password()
	}

	config.DBName = strings.TrimPrefix(u.Path, "/")

	config.SSLMode = u.Query().Get("sslmode")
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("30m") or plain seconds ("60").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
