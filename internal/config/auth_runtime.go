package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultAccessTokenSecret  = "change-me-access-secret"
	defaultRefreshTokenSecret = "change-me-refresh-secret"
	defaultOTPCodePepper      = "change-me-otp-pepper"

	OTPStoreMemory = "memory"
	OTPStoreRedis  = "redis"
)

type AuthRuntimeConfig struct {
	AppEnv             string   `env:"APP_ENV" envDefault:"dev"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr           string   `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL        string   `env:"DATABASE_URL" envDefault:"authsession.db"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Access and refresh tokens are signed with different secrets.
	AccessTokenSecret    string        `env:"ACCESS_TOKEN_SECRET" envDefault:"change-me-access-secret"`
	RefreshTokenSecret   string        `env:"REFRESH_TOKEN_SECRET" envDefault:"change-me-refresh-secret"`
	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL      time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	RefreshRememberTTL   time.Duration `env:"REFRESH_TOKEN_REMEMBER_TTL" envDefault:"720h"`
	RotateRefreshOnRenew bool          `env:"REFRESH_ROTATE_ON_RENEW" envDefault:"false"`
	JWTIssuer            string        `env:"JWT_ISSUER" envDefault:"authsession"`
	JWTLeeway            time.Duration `env:"JWT_LEEWAY" envDefault:"0s"`

	OTPLength         int           `env:"OTP_LENGTH" envDefault:"6"`
	OTPTTL            time.Duration `env:"OTP_TTL" envDefault:"300s"`
	OTPMaxAttempts    int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	OTPResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN" envDefault:"60s"`
	OTPCodePepper     string        `env:"OTP_CODE_PEPPER" envDefault:"change-me-otp-pepper"`
	OTPStore          string        `env:"OTP_STORE" envDefault:"memory"`
	RedisURL          string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisKeyPrefix    string        `env:"REDIS_KEY_PREFIX" envDefault:"authsession:"`

	TokenCleanupInterval time.Duration `env:"TOKEN_CLEANUP_INTERVAL" envDefault:"1h"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	DevMailerLogCodes    bool          `env:"DEV_MAILER_LOG_CODES" envDefault:"false"`
	AccountGate          bool          `env:"ACCOUNT_GATE" envDefault:"false"`
}

// LoadAuthRuntimeConfig reads an optional .env file, then the environment.
func LoadAuthRuntimeConfig() (*AuthRuntimeConfig, error) {
	_ = godotenv.Load()

	cfg := &AuthRuntimeConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.OTPStore = strings.ToLower(strings.TrimSpace(cfg.OTPStore))
	cfg.AccessTokenSecret = strings.TrimSpace(cfg.AccessTokenSecret)
	cfg.RefreshTokenSecret = strings.TrimSpace(cfg.RefreshTokenSecret)
	cfg.OTPCodePepper = strings.TrimSpace(cfg.OTPCodePepper)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AuthRuntimeConfig) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *AuthRuntimeConfig) error {
	if cfg.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be > 0")
	}
	if cfg.RefreshTokenTTL <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_TTL must be > 0")
	}
	if cfg.RefreshRememberTTL < cfg.RefreshTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_REMEMBER_TTL must be >= REFRESH_TOKEN_TTL")
	}
	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if cfg.JWTLeeway < 0 || cfg.JWTLeeway > 2*time.Minute {
		return fmt.Errorf("JWT_LEEWAY must be between 0s and 2m")
	}
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must not be empty")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10")
	}
	if cfg.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be > 0")
	}
	if cfg.OTPMaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be > 0")
	}
	if cfg.OTPResendCooldown <= 0 {
		return fmt.Errorf("OTP_RESEND_COOLDOWN must be > 0")
	}
	if cfg.OTPResendCooldown >= cfg.OTPTTL {
		return fmt.Errorf("OTP_RESEND_COOLDOWN must be shorter than OTP_TTL")
	}
	switch cfg.OTPStore {
	case OTPStoreMemory:
	case OTPStoreRedis:
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required when OTP_STORE=redis")
		}
	default:
		return fmt.Errorf("OTP_STORE must be one of: memory, redis")
	}

	if cfg.TokenCleanupInterval < 0 {
		return fmt.Errorf("TOKEN_CLEANUP_INTERVAL must be >= 0")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.AccessTokenSecret, defaultAccessTokenSecret) {
			return fmt.Errorf("in prod/release ACCESS_TOKEN_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.RefreshTokenSecret, defaultRefreshTokenSecret) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.OTPCodePepper, defaultOTPCodePepper) {
			return fmt.Errorf("in prod/release OTP_CODE_PEPPER must be set and not default")
		}
		if cfg.OTPStore == OTPStoreMemory {
			return fmt.Errorf("in prod/release OTP_STORE must be redis")
		}
		if cfg.DevMailerLogCodes {
			return fmt.Errorf("in prod/release DEV_MAILER_LOG_CODES must be false")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
