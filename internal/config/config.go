package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig       `env:",prefix=SERVER_"`
	Postgres PostgresConfig     `env:",prefix=POSTGRES_"`
	Redis    RedisConfig        `env:",prefix=REDIS_"`
	JWT      JWTConfig          `env:",prefix=JWT_"`
	OTP      OTPConfig          `env:",prefix=OTP_"`
	Verify   VerificationConfig `env:",prefix=EMAIL_VERIFY_"`
	Reset    ResetConfig        `env:",prefix=PASSWORD_RESET_"`
	Sweeper  SweeperConfig      `env:",prefix=SWEEPER_"`
	Mail     MailConfig         `env:",prefix=MAIL_"`
	Identity IdentityConfig     `env:",prefix=IDP_"`
	Security SecurityConfig     `env:",prefix="`
	CORS     CORSConfig         `env:",prefix=CORS_"`
	Env      string             `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host          string `env:"HOST,default=localhost"`
	Port          string `env:"PORT,default=5432"`
	User          string `env:"USER,default=identity_service"`
	Password      string `env:"PASSWORD,default=identity_service_password"`
	DBName        string `env:"DB,default=identity_service_db"`
	SSLMode       string `env:"SSLMODE,default=disable"`
	MigrationsDir string `env:"MIGRATIONS_DIR,default=migrations"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type JWTConfig struct {
	Secret             string   `env:"SECRET,required"`
	Issuer             string   `env:"ISSUER,default=identity-service"`
	Audience           string   `env:"AUDIENCE,default=identity-platform"`
	AccessTokenExpiry  Duration `env:"ACCESS_TOKEN_EXPIRY,default=15m"`
	RefreshTokenExpiry Duration `env:"REFRESH_TOKEN_EXPIRY,default=7d"`
}

// OTPConfig carries the one-time-code contract values: 5 minute codes,
// 3 validation attempts, at most 3 sends per phone per trailing hour.
type OTPConfig struct {
	CodeExpiry  Duration `env:"CODE_EXPIRY,default=5m"`
	MaxAttempts int      `env:"MAX_ATTEMPTS,default=3"`
	SendLimit   int      `env:"SEND_LIMIT,default=3"`
	SendWindow  Duration `env:"SEND_WINDOW,default=1h"`
}

type VerificationConfig struct {
	TokenExpiry    Duration `env:"TOKEN_EXPIRY,default=24h"`
	ResendCooldown Duration `env:"RESEND_COOLDOWN,default=5m"`
	Retention      Duration `env:"RETENTION,default=30d"`
}

type ResetConfig struct {
	TokenExpiry     Duration `env:"TOKEN_EXPIRY,default=24h"`
	RequestCooldown Duration `env:"REQUEST_COOLDOWN,default=5m"`
	Retention       Duration `env:"RETENTION,default=7d"`
}

type SweeperConfig struct {
	OTPInterval     Duration `env:"OTP_INTERVAL,default=10m"`
	RefreshInterval Duration `env:"REFRESH_INTERVAL,default=1h"`
	VerifyInterval  Duration `env:"VERIFY_INTERVAL,default=6h"`
	ResetInterval   Duration `env:"RESET_INTERVAL,default=6h"`
	RetryBackoff    Duration `env:"RETRY_BACKOFF,default=1m"`
}

type MailConfig struct {
	Provider    string `env:"PROVIDER,default=console"` // console or ses
	Region      string `env:"REGION,default=us-east-1"`
	FromAddress string `env:"FROM_ADDRESS,default=no-reply@identity-service.local"`
	BaseURL     string `env:"BASE_URL,default=http://localhost:8080"`
}

// IdentityConfig configures the external identity provider mirror.
// Sync is disabled when BaseURL is empty.
type IdentityConfig struct {
	BaseURL      string   `env:"BASE_URL,default="`
	Realm        string   `env:"REALM,default=platform"`
	ClientID     string   `env:"CLIENT_ID,default="`
	ClientSecret string   `env:"CLIENT_SECRET,default="`
	Timeout      Duration `env:"TIMEOUT,default=5s"`
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Enabled reports whether external identity sync is configured.
func (i IdentityConfig) Enabled() bool {
	return i.BaseURL != ""
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
