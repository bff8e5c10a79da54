package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/spf13/viper"
)

// AppConfig is the service configuration loaded from the environment and an
// optional .env file. It satisfies Config.
type AppConfig struct {
	Addr      string `mapstructure:"APP_ADDR"`
	Env       string `mapstructure:"APP_ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json, pretty or console.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// DatabaseDriver is sqlite or postgres.
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseDSN    string `mapstructure:"DATABASE_DSN"`
	// SessionStore is database, postgres or memory.
	SessionStore       string `mapstructure:"SESSION_STORE"`
	SessionDatabaseURL string `mapstructure:"SESSION_DATABASE_URL"`

	JWTAccessSecret       string        `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret      string        `mapstructure:"JWT_REFRESH_SECRET"`
	JWTAccessTTLMinutes   int           `mapstructure:"JWT_ACCESS_TTL_MINUTES"`
	JWTRefreshTTLMinutes  int           `mapstructure:"JWT_REFRESH_TTL_MINUTES"`
	CookieSecure          bool          `mapstructure:"COOKIE_SECURE"`
	ClientBaseURL         string        `mapstructure:"CLIENT_BASE_URL"`
	VerificationTokenTTL  time.Duration `mapstructure:"VERIFICATION_TOKEN_TTL"`
	PasswordResetTokenTTL time.Duration `mapstructure:"PASSWORD_RESET_TOKEN_TTL"`
	ResetTokenSingleUse   bool          `mapstructure:"RESET_TOKEN_SINGLE_USE"`

	// PasswordHasher is bcrypt or argon2id.
	PasswordHasher string `mapstructure:"PASSWORD_HASHER"`
	BcryptCost     int    `mapstructure:"BCRYPT_COST"`
	HashWorkers    int    `mapstructure:"HASH_WORKERS"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	StoreTimeout   time.Duration `mapstructure:"STORE_TIMEOUT"`

	EmailAPIURL   string        `mapstructure:"EMAIL_API_URL"`
	EmailAPIToken string        `mapstructure:"EMAIL_API_TOKEN"`
	EmailSender   string        `mapstructure:"EMAIL_SENDER"`
	EmailTimeout  time.Duration `mapstructure:"EMAIL_TIMEOUT"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

var _ Config = (*AppConfig)(nil)

// LoadConfig reads envFile (if present) then the process environment.
// Environment variables win over the file.
func LoadConfig(envFile string) (*AppConfig, error) {
	v := viper.New()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	v.AutomaticEnv()
	setConfigDefaults(v)

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:auth.db?_pragma=foreign_keys(1)")
	v.SetDefault("SESSION_STORE", "database")
	v.SetDefault("SESSION_DATABASE_URL", "")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL_MINUTES", 15)
	v.SetDefault("JWT_REFRESH_TTL_MINUTES", 60*24*7)
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("CLIENT_BASE_URL", "http://localhost:3000")
	v.SetDefault("VERIFICATION_TOKEN_TTL", "24h")
	v.SetDefault("PASSWORD_RESET_TOKEN_TTL", "10m")
	v.SetDefault("RESET_TOKEN_SINGLE_USE", true)
	v.SetDefault("PASSWORD_HASHER", "bcrypt")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("HASH_WORKERS", 0)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("EMAIL_API_URL", "")
	v.SetDefault("EMAIL_API_TOKEN", "")
	v.SetDefault("EMAIL_SENDER", "no-reply@localhost")
	v.SetDefault("EMAIL_TIMEOUT", "10s")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
}

// Validate checks required fields and ranges.
func (c *AppConfig) Validate() error {
	invalid := func(msg string) error {
		return goerrors.New("config: "+msg, goerrors.CategoryValidation)
	}

	switch {
	case c.Addr == "":
		return invalid("APP_ADDR must be set")
	case c.JWTAccessSecret == "" || c.JWTRefreshSecret == "":
		return invalid("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	case c.JWTAccessSecret == c.JWTRefreshSecret:
		return invalid("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	case c.JWTAccessTTLMinutes <= 0:
		return invalid("JWT_ACCESS_TTL_MINUTES must be positive")
	case c.JWTRefreshTTLMinutes <= c.JWTAccessTTLMinutes:
		return invalid("JWT_REFRESH_TTL_MINUTES must be greater than JWT_ACCESS_TTL_MINUTES")
	case c.LogFormat != "" && c.LogFormat != glog.LoggerTypeJSON && c.LogFormat != glog.LoggerTypePretty && c.LogFormat != glog.LoggerTypeConsole:
		return invalid("LOG_FORMAT must be json, pretty or console")
	case c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres":
		return invalid("DATABASE_DRIVER must be sqlite or postgres")
	case c.SessionStore != "database" && c.SessionStore != "postgres" && c.SessionStore != "memory":
		return invalid("SESSION_STORE must be database, postgres or memory")
	case c.SessionStore == "postgres" && c.SessionDatabaseURL == "":
		return invalid("SESSION_DATABASE_URL is required when SESSION_STORE=postgres")
	case c.PasswordHasher != "bcrypt" && c.PasswordHasher != "argon2id":
		return invalid("PASSWORD_HASHER must be bcrypt or argon2id")
	case c.PasswordHasher == "bcrypt" && (c.BcryptCost < 4 || c.BcryptCost > 31):
		return invalid("BCRYPT_COST must be between 4 and 31")
	case c.VerificationTokenTTL <= 0 || c.PasswordResetTokenTTL <= 0:
		return invalid("token TTLs must be positive")
	case c.Env == "production" && !c.CookieSecure:
		return invalid("COOKIE_SECURE must be true when APP_ENV=production")
	}

	return nil
}

func (c *AppConfig) GetAccessSecret() string                 { return c.JWTAccessSecret }
func (c *AppConfig) GetRefreshSecret() string                { return c.JWTRefreshSecret }
func (c *AppConfig) GetAccessTokenTTLMinutes() int           { return c.JWTAccessTTLMinutes }
func (c *AppConfig) GetRefreshTokenTTLMinutes() int          { return c.JWTRefreshTTLMinutes }
func (c *AppConfig) GetSecureCookies() bool                  { return c.CookieSecure }
func (c *AppConfig) GetClientBaseURL() string                { return c.ClientBaseURL }
func (c *AppConfig) GetVerificationTokenTTL() time.Duration  { return c.VerificationTokenTTL }
func (c *AppConfig) GetPasswordResetTokenTTL() time.Duration { return c.PasswordResetTokenTTL }
func (c *AppConfig) GetResetTokenSingleUse() bool            { return c.ResetTokenSingleUse }
func (c *AppConfig) GetStoreTimeout() time.Duration          { return c.StoreTimeout }
