package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Admin        AdminConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Recovery     RecoveryConfig
	Email        EmailConfig
	WhatsApp     WhatsAppConfig
	Coupon       CouponConfig
	License      LicenseConfig
	GeoIP        GeoIPConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	cfg.Recovery.Normalize()
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RECOVERO_APP_ENV" required:"true"`
	Port         string `envconfig:"RECOVERO_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RECOVERO_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"RECOVERO_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"RECOVERO_LOG_WARN_STACK" default:"false"`
	// PublicURL is the storefront base used to build recovery links.
	PublicURL string `envconfig:"RECOVERO_PUBLIC_URL" required:"true"`
	// CORSOrigins are the storefront origins allowed to call the tracking API.
	CORSOrigins []string `envconfig:"RECOVERO_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RECOVERO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RECOVERO_DB_DSN"`
	Driver string `envconfig:"RECOVERO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RECOVERO_DB_HOST"`
	LegacyPort     int    `envconfig:"RECOVERO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RECOVERO_DB_USER"`
	LegacyPassword string `envconfig:"RECOVERO_DB_PASSWORD"`
	LegacyName     string `envconfig:"RECOVERO_DB_NAME"`
	LegacySSLMode  string `envconfig:"RECOVERO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RECOVERO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RECOVERO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RECOVERO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RECOVERO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RECOVERO_REDIS_URL" required:"true"`
	Password     string        `envconfig:"RECOVERO_REDIS_PASSWORD"`
	DB           int           `envconfig:"RECOVERO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RECOVERO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RECOVERO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RECOVERO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RECOVERO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RECOVERO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RECOVERO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RECOVERO_JWT_ISSUER" default:"recovero"`
	ExpirationMinutes int    `envconfig:"RECOVERO_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TTL returns the admin access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"RECOVERO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"RECOVERO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"RECOVERO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"RECOVERO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"RECOVERO_ARGON_KEY_LEN" default:"32"`
}

// AdminConfig holds the single operator account for the admin API.
type AdminConfig struct {
	Email        string `envconfig:"RECOVERO_ADMIN_EMAIL"`
	PasswordHash string `envconfig:"RECOVERO_ADMIN_PASSWORD_HASH"`
}

type RateLimitConfig struct {
	RecoveryWindow time.Duration `envconfig:"RECOVERO_RATE_LIMIT_RECOVERY_WINDOW" default:"1m"`
	RecoveryLimit  int           `envconfig:"RECOVERO_RATE_LIMIT_RECOVERY_LIMIT" default:"30"`
	TrackWindow    time.Duration `envconfig:"RECOVERO_RATE_LIMIT_TRACK_WINDOW" default:"1m"`
	TrackLimit     int           `envconfig:"RECOVERO_RATE_LIMIT_TRACK_LIMIT" default:"120"`
	LoginWindow    time.Duration `envconfig:"RECOVERO_RATE_LIMIT_LOGIN_WINDOW" default:"5m"`
	LoginLimit     int           `envconfig:"RECOVERO_RATE_LIMIT_LOGIN_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RECOVERO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RECOVERO_AUTO_MIGRATE" default:"false"`
}

// RecoveryConfig carries every tunable of the reminder flow.
type RecoveryConfig struct {
	TrackingEnabled bool `envconfig:"RECOVERO_TRACKING_ENABLED" default:"true"`
	EmailEnabled    bool `envconfig:"RECOVERO_EMAIL_ENABLED" default:"true"`
	WhatsAppEnabled bool `envconfig:"RECOVERO_WHATSAPP_ENABLED" default:"false"`
	CouponEnabled   bool `envconfig:"RECOVERO_COUPON_ENABLED" default:"true"`

	EmailDelayHours    float64 `envconfig:"RECOVERO_EMAIL_DELAY_HOURS" default:"1"`
	WhatsAppDelayHours float64 `envconfig:"RECOVERO_WHATSAPP_DELAY_HOURS" default:"6"`
	CouponDelayHours   float64 `envconfig:"RECOVERO_COUPON_DELAY_HOURS" default:"24"`
	MaxCartAgeHours    float64 `envconfig:"RECOVERO_MAX_CART_AGE_HOURS" default:"168"`

	BatchSize int `envconfig:"RECOVERO_REMINDER_BATCH_SIZE" default:"100"`
	PurgeDays int `envconfig:"RECOVERO_PURGE_DAYS" default:"90"`

	RequireLicenseForPro bool `envconfig:"RECOVERO_REQUIRE_LICENSE_FOR_PRO" default:"false"`

	CheckoutURL   string `envconfig:"RECOVERO_CHECKOUT_URL" required:"true"`
	StoreName     string `envconfig:"RECOVERO_STORE_NAME" default:"our store"`
	EmailSubject  string `envconfig:"RECOVERO_EMAIL_SUBJECT" default:"Complete your purchase"`
	CouponSubject string `envconfig:"RECOVERO_COUPON_SUBJECT" default:"Here is a special coupon for you"`
	WebhookSecret string `envconfig:"RECOVERO_WEBHOOK_SECRET"`
}

const (
	minEmailDelayHours = 1
	maxEmailDelayHours = 168
	minStageDelayHours = 1
	maxStageDelayHours = 720
	maxCartAgeHours    = 2160
	defaultBatchSize   = 100
	maxBatchSize       = 1000
	defaultPurgeDays   = 90
)

// Normalize clamps every delay into its accepted range.
func (r *RecoveryConfig) Normalize() {
	r.EmailDelayHours = clamp(r.EmailDelayHours, minEmailDelayHours, maxEmailDelayHours)
	r.WhatsAppDelayHours = clamp(r.WhatsAppDelayHours, minStageDelayHours, maxStageDelayHours)
	r.CouponDelayHours = clamp(r.CouponDelayHours, minStageDelayHours, maxStageDelayHours)
	r.MaxCartAgeHours = clamp(r.MaxCartAgeHours, 1, maxCartAgeHours)
	if r.BatchSize <= 0 {
		r.BatchSize = defaultBatchSize
	}
	if r.BatchSize > maxBatchSize {
		r.BatchSize = maxBatchSize
	}
	if r.PurgeDays <= 0 {
		r.PurgeDays = defaultPurgeDays
	}
}

func (r RecoveryConfig) EmailDelay() time.Duration    { return hours(r.EmailDelayHours) }
func (r RecoveryConfig) WhatsAppDelay() time.Duration { return hours(r.WhatsAppDelayHours) }
func (r RecoveryConfig) CouponDelay() time.Duration   { return hours(r.CouponDelayHours) }
func (r RecoveryConfig) MaxCartAge() time.Duration    { return hours(r.MaxCartAgeHours) }

type EmailConfig struct {
	Region          string `envconfig:"RECOVERO_SES_REGION" default:"us-east-1"`
	AccessKeyID     string `envconfig:"RECOVERO_SES_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"RECOVERO_SES_SECRET_ACCESS_KEY"`
	FromEmail       string `envconfig:"RECOVERO_EMAIL_FROM"`
	FromName        string `envconfig:"RECOVERO_EMAIL_FROM_NAME" default:"Recovero"`
	ReplyTo         string `envconfig:"RECOVERO_EMAIL_REPLY_TO"`
}

type WhatsAppConfig struct {
	BaseURL       string        `envconfig:"RECOVERO_WHATSAPP_BASE_URL" default:"https://graph.facebook.com/v17.0"`
	Token         string        `envconfig:"RECOVERO_WHATSAPP_TOKEN"`
	PhoneNumberID string        `envconfig:"RECOVERO_WHATSAPP_PHONE_NUMBER_ID"`
	Timeout       time.Duration `envconfig:"RECOVERO_WHATSAPP_TIMEOUT" default:"20s"`

	// TemplateName switches reminders to an approved template message. Its
	// body takes the customer name, store name and recovery link in order.
	TemplateName     string `envconfig:"RECOVERO_WHATSAPP_TEMPLATE"`
	TemplateLanguage string `envconfig:"RECOVERO_WHATSAPP_TEMPLATE_LANGUAGE" default:"en_US"`
}

type CouponConfig struct {
	Prefix     string          `envconfig:"RECOVERO_COUPON_PREFIX" default:"RECOVERO-"`
	Amount     decimal.Decimal `envconfig:"RECOVERO_COUPON_AMOUNT" default:"10"`
	ExpiryDays int             `envconfig:"RECOVERO_COUPON_EXPIRY_DAYS" default:"7"`
}

type LicenseConfig struct {
	ServerURL        string        `envconfig:"RECOVERO_LICENSE_SERVER_URL"`
	Domain           string        `envconfig:"RECOVERO_LICENSE_DOMAIN"`
	Timeout          time.Duration `envconfig:"RECOVERO_LICENSE_TIMEOUT" default:"15s"`
	ReverifyInterval time.Duration `envconfig:"RECOVERO_LICENSE_REVERIFY_INTERVAL" default:"24h"`
}

type GeoIPConfig struct {
	Enabled bool          `envconfig:"RECOVERO_GEOIP_ENABLED" default:"true"`
	BaseURL string        `envconfig:"RECOVERO_GEOIP_BASE_URL" default:"http://ip-api.com"`
	Timeout time.Duration `envconfig:"RECOVERO_GEOIP_TIMEOUT" default:"5s"`
}

type CronConfig struct {
	ReminderInterval    time.Duration `envconfig:"RECOVERO_CRON_REMINDER_INTERVAL" default:"1h"`
	MaintenanceInterval time.Duration `envconfig:"RECOVERO_CRON_MAINTENANCE_INTERVAL" default:"24h"`

	// MetricsAddr serves the worker's /metrics; empty disables it.
	MetricsAddr string `envconfig:"RECOVERO_CRON_METRICS_ADDR" default:":9091"`
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

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
