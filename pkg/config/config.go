package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Paymob       PaymobConfig
	Storefront   StorefrontConfig
	FeatureFlags FeatureFlagsConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NILECART_APP_ENV" required:"true"`
	Port         string `envconfig:"NILECART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NILECART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NILECART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NILECART_DB_DSN"`
	Driver string `envconfig:"NILECART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NILECART_DB_HOST"`
	LegacyPort     int    `envconfig:"NILECART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NILECART_DB_USER"`
	LegacyPassword string `envconfig:"NILECART_DB_PASSWORD"`
	LegacyName     string `envconfig:"NILECART_DB_NAME"`
	LegacySSLMode  string `envconfig:"NILECART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NILECART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NILECART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NILECART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NILECART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NILECART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NILECART_REDIS_ADDR"`
	Password     string        `envconfig:"NILECART_REDIS_PASSWORD"`
	DB           int           `envconfig:"NILECART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NILECART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NILECART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NILECART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NILECART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NILECART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"NILECART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"NILECART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"NILECART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PaymobConfig carries the gateway credentials and callback policy.
type PaymobConfig struct {
	BaseURL       string        `envconfig:"NILECART_PAYMOB_BASE_URL" default:"https://accept.paymob.com/api"`
	APIKey        string        `envconfig:"NILECART_PAYMOB_API_KEY" required:"true"`
	HMACSecret    string        `envconfig:"NILECART_PAYMOB_HMAC_SECRET" required:"true"`
	IntegrationID int           `envconfig:"NILECART_PAYMOB_INTEGRATION_ID" required:"true"`
	Timeout       time.Duration `envconfig:"NILECART_PAYMOB_TIMEOUT" default:"15s"`

	// AllowUnverifiedWebhook lets the server-push path process callbacks that
	// fail signature verification. Requires explicit operator acknowledgment;
	// the redirect path always rejects regardless of this flag.
	AllowUnverifiedWebhook bool `envconfig:"NILECART_PAYMOB_ALLOW_UNVERIFIED_WEBHOOK" default:"false"`
}

// StorefrontConfig holds the browser-facing URLs used by redirect callbacks.
type StorefrontConfig struct {
	BaseURL          string `envconfig:"NILECART_STOREFRONT_BASE_URL" required:"true"`
	ConfirmationPath string `envconfig:"NILECART_STOREFRONT_CONFIRMATION_PATH" default:"/orders/confirmation"`
	CartPath         string `envconfig:"NILECART_STOREFRONT_CART_PATH" default:"/cart"`
}

// ConfirmationURL builds the order-confirmation redirect target.
func (s StorefrontConfig) ConfirmationURL() string {
	return strings.TrimRight(s.BaseURL, "/") + s.ConfirmationPath
}

// CartURL builds the cart redirect target used for failure states.
func (s StorefrontConfig) CartURL() string {
	return strings.TrimRight(s.BaseURL, "/") + s.CartPath
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NILECART_AUTO_MIGRATE" default:"false"`
}

type PubSubConfig struct {
	ProjectID          string `envconfig:"NILECART_GCP_PROJECT_ID"`
	DomainTopic        string `envconfig:"NILECART_PUBSUB_DOMAIN_TOPIC" default:"nc-domain-events"`
	DomainSubscription string `envconfig:"NILECART_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"NILECART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"NILECART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"NILECART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
