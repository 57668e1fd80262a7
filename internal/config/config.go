package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Operator     OperatorConfig
	Webpay       WebpayConfig
	TaxAuthority TaxAuthorityConfig
	Checkout     CheckoutConfig
	Reconciler   ReconcilerConfig
	Email        EmailConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
}

type AppConfig struct {
	Name  string
	Env   string
	Port  string
	Debug bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	Timezone string
}

type JWTConfig struct {
	Secret             string
	ExpiryHours        time.Duration
	RefreshExpiryHours time.Duration
}

// OperatorConfig provisions the single back-office credential used to
// review the reconciliation queue. Full user management lives elsewhere.
type OperatorConfig struct {
	Email        string
	PasswordHash string // bcrypt hash
}

// WebpayConfig configures the card payment gateway adapter.
type WebpayConfig struct {
	BaseURL      string
	CommerceCode string
	APIKey       string
	ReturnURL    string
	Timeout      time.Duration
}

// TaxAuthorityConfig configures the fiscal document submission adapter.
type TaxAuthorityConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// CheckoutConfig holds cart snapshot and tax policy knobs.
type CheckoutConfig struct {
	PendingTTL time.Duration
	// TaxRateBP is the proportional tax rate in basis points (1900 = 19%).
	TaxRateBP int64
}

// ReconcilerConfig bounds submission retries and sets the background
// reconciliation cadence.
type ReconcilerConfig struct {
	SubmitMaxAttempts  int
	SubmitBackoffBase  time.Duration
	CorrectionAttempts int
	PollInterval       time.Duration
}

type EmailConfig struct {
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	FromName      string
	FromEmail     string
	OperatorInbox string
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables: %v", err)
	}

	// Set defaults
	viper.SetDefault("APP_NAME", "caja-api")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "caja")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_TIMEZONE", "America/Santiago")
	viper.SetDefault("JWT_SECRET", "change-this-secret-in-production")
	viper.SetDefault("JWT_EXPIRY_HOURS", 24)
	viper.SetDefault("JWT_REFRESH_EXPIRY_HOURS", 168)
	viper.SetDefault("WEBPAY_BASE_URL", "https://webpay3gint.transbank.cl/rswebpaytransaction/api/webpay/v1.2")
	viper.SetDefault("WEBPAY_COMMERCE_CODE", "597055555532")
	viper.SetDefault("WEBPAY_API_KEY", "")
	viper.SetDefault("WEBPAY_RETURN_URL", "http://localhost:8080/api/v1/checkout/return")
	viper.SetDefault("WEBPAY_TIMEOUT_SECONDS", 15)
	viper.SetDefault("TAX_BASE_URL", "https://api.sii.cl/recursos/v1/boleta.electronica")
	viper.SetDefault("TAX_TOKEN_URL", "https://api.sii.cl/recursos/v1/boleta.electronica.token")
	viper.SetDefault("TAX_CLIENT_ID", "")
	viper.SetDefault("TAX_CLIENT_SECRET", "")
	viper.SetDefault("TAX_TIMEOUT_SECONDS", 20)
	viper.SetDefault("CHECKOUT_PENDING_TTL_MINUTES", 30)
	viper.SetDefault("CHECKOUT_TAX_RATE_BP", 1900)
	viper.SetDefault("RECONCILER_SUBMIT_MAX_ATTEMPTS", 3)
	viper.SetDefault("RECONCILER_SUBMIT_BACKOFF_MS", 500)
	viper.SetDefault("RECONCILER_CORRECTION_ATTEMPTS", 3)
	viper.SetDefault("RECONCILER_POLL_INTERVAL_SECONDS", 60)
	viper.SetDefault("OPERATOR_EMAIL", "operador@localhost")
	viper.SetDefault("OPERATOR_PASSWORD_HASH", "")
	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("MAIL_FROM_NAME", "Caja")
	viper.SetDefault("MAIL_FROM_EMAIL", "no-reply@localhost")
	viper.SetDefault("OPERATOR_INBOX", "")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{})
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_DURATION", 60)

	return &Config{
		App: AppConfig{
			Name:  viper.GetString("APP_NAME"),
			Env:   viper.GetString("APP_ENV"),
			Port:  viper.GetString("APP_PORT"),
			Debug: viper.GetBool("APP_DEBUG"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
			Timezone: viper.GetString("DB_TIMEZONE"),
		},
		JWT: JWTConfig{
			Secret:             viper.GetString("JWT_SECRET"),
			ExpiryHours:        time.Duration(viper.GetInt("JWT_EXPIRY_HOURS")) * time.Hour,
			RefreshExpiryHours: time.Duration(viper.GetInt("JWT_REFRESH_EXPIRY_HOURS")) * time.Hour,
		},
		Operator: OperatorConfig{
			Email:        viper.GetString("OPERATOR_EMAIL"),
			PasswordHash: viper.GetString("OPERATOR_PASSWORD_HASH"),
		},
		Webpay: WebpayConfig{
			BaseURL:      viper.GetString("WEBPAY_BASE_URL"),
			CommerceCode: viper.GetString("WEBPAY_COMMERCE_CODE"),
			APIKey:       viper.GetString("WEBPAY_API_KEY"),
			ReturnURL:    viper.GetString("WEBPAY_RETURN_URL"),
			Timeout:      time.Duration(viper.GetInt("WEBPAY_TIMEOUT_SECONDS")) * time.Second,
		},
		TaxAuthority: TaxAuthorityConfig{
			BaseURL:      viper.GetString("TAX_BASE_URL"),
			TokenURL:     viper.GetString("TAX_TOKEN_URL"),
			ClientID:     viper.GetString("TAX_CLIENT_ID"),
			ClientSecret: viper.GetString("TAX_CLIENT_SECRET"),
			Timeout:      time.Duration(viper.GetInt("TAX_TIMEOUT_SECONDS")) * time.Second,
		},
		Checkout: CheckoutConfig{
			PendingTTL: time.Duration(viper.GetInt("CHECKOUT_PENDING_TTL_MINUTES")) * time.Minute,
			TaxRateBP:  viper.GetInt64("CHECKOUT_TAX_RATE_BP"),
		},
		Reconciler: ReconcilerConfig{
			SubmitMaxAttempts:  viper.GetInt("RECONCILER_SUBMIT_MAX_ATTEMPTS"),
			SubmitBackoffBase:  time.Duration(viper.GetInt("RECONCILER_SUBMIT_BACKOFF_MS")) * time.Millisecond,
			CorrectionAttempts: viper.GetInt("RECONCILER_CORRECTION_ATTEMPTS"),
			PollInterval:       time.Duration(viper.GetInt("RECONCILER_POLL_INTERVAL_SECONDS")) * time.Second,
		},
		Email: EmailConfig{
			SMTPHost:      viper.GetString("SMTP_HOST"),
			SMTPPort:      viper.GetInt("SMTP_PORT"),
			SMTPUsername:  viper.GetString("SMTP_USERNAME"),
			SMTPPassword:  viper.GetString("SMTP_PASSWORD"),
			FromName:      viper.GetString("MAIL_FROM_NAME"),
			FromEmail:     viper.GetString("MAIL_FROM_EMAIL"),
			OperatorInbox: viper.GetString("OPERATOR_INBOX"),
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders: viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetInt("RATE_LIMIT_DURATION"),
		},
	}
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}
