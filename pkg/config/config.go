package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Square       SquareConfig
	Pricing      PricingConfig
	Documents    DocumentsConfig
	GCS          GCSConfig
	Webhooks     WebhooksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Documents.validate(cfg.GCS); err != nil {
		return nil, err
	}
	currency, err := enums.ParseCurrency(cfg.Square.DefaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("FABSHOP_SQUARE_CURRENCY: %w", err)
	}
	cfg.Square.DefaultCurrency = currency.String()
	return &cfg, nil
}

type AppConfig struct {
	Env            string        `envconfig:"FABSHOP_APP_ENV" required:"true"`
	Port           string        `envconfig:"FABSHOP_APP_PORT" default:"8080"`
	LogLevel       string        `envconfig:"FABSHOP_LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"FABSHOP_LOG_FORMAT" default:"json"`
	LogWarnStack   bool          `envconfig:"FABSHOP_LOG_WARN_STACK" default:"false"`
	RequestTimeout time.Duration `envconfig:"FABSHOP_REQUEST_TIMEOUT" default:"5s"`
	CORSOrigins    []string      `envconfig:"FABSHOP_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FABSHOP_DB_DSN"`
	Driver string `envconfig:"FABSHOP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FABSHOP_DB_HOST"`
	Port     int    `envconfig:"FABSHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"FABSHOP_DB_USER"`
	Password string `envconfig:"FABSHOP_DB_PASSWORD"`
	Name     string `envconfig:"FABSHOP_DB_NAME"`
	SSLMode  string `envconfig:"FABSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FABSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FABSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FABSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FABSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration above which statements are logged.
	SlowQuery time.Duration `envconfig:"FABSHOP_DB_SLOW_QUERY" default:"200ms"`
}

// RedisConfig is optional: an empty URL and address disables idempotency
// replay, webhook event guards and cross-instance render locks.
type RedisConfig struct {
	URL          string        `envconfig:"FABSHOP_REDIS_URL"`
	Address      string        `envconfig:"FABSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"FABSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"FABSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FABSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FABSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FABSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FABSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FABSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type RateLimitConfig struct {
	QuoteWindow    time.Duration `envconfig:"FABSHOP_RATE_LIMIT_QUOTE_WINDOW" default:"1m"`
	QuoteIPLimit   int           `envconfig:"FABSHOP_RATE_LIMIT_QUOTE_IP_LIMIT" default:"120"`
	CheckoutWindow time.Duration `envconfig:"FABSHOP_RATE_LIMIT_CHECKOUT_WINDOW" default:"5m"`
	CheckoutLimit  int           `envconfig:"FABSHOP_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"FABSHOP_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"FABSHOP_AUTO_MIGRATE" default:"false"`
	AutoShopPacket bool `envconfig:"FABSHOP_AUTO_SHOP_PACKET" default:"true"`
}

type SquareConfig struct {
	AccessToken     string `envconfig:"FABSHOP_SQUARE_ACCESS_TOKEN"`
	Env             string `envconfig:"FABSHOP_SQUARE_ENV" default:"sandbox"`
	LocationID      string `envconfig:"FABSHOP_SQUARE_LOCATION_ID"`
	WebhookSecret   string `envconfig:"FABSHOP_SQUARE_WEBHOOK_SIGNATURE_KEY"`
	WebhookURL      string `envconfig:"FABSHOP_SQUARE_WEBHOOK_URL"`
	DefaultCurrency string `envconfig:"FABSHOP_SQUARE_CURRENCY" default:"USD"`
}

// Configured reports whether enough settings exist to create payments.
func (s SquareConfig) Configured() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return SquareEnvSandbox
	}
	return env
}

type PricingConfig struct {
	PricingTablePath  string `envconfig:"FABSHOP_PRICING_TABLE_PATH"`
	TaxTablePath      string `envconfig:"FABSHOP_TAX_TABLE_PATH"`
	ShippingTablePath string `envconfig:"FABSHOP_SHIPPING_TABLE_PATH"`
	// CustomFabricationPolicy is one of none, exempt or review.
	CustomFabricationPolicy string   `envconfig:"FABSHOP_TAX_CUSTOM_FAB_POLICY" default:"none"`
	ManufacturingStates     []string `envconfig:"FABSHOP_TAX_MANUFACTURING_STATES"`
}

type DocumentsConfig struct {
	Storage       string        `envconfig:"FABSHOP_DOCUMENTS_STORAGE" default:"local"`
	LocalDir      string        `envconfig:"FABSHOP_DOCUMENTS_LOCAL_DIR" default:"var/documents"`
	PublicBaseURL string        `envconfig:"FABSHOP_DOCUMENTS_PUBLIC_BASE_URL" default:"http://localhost:8080/files"`
	QuoteTTL      time.Duration `envconfig:"FABSHOP_DOCUMENTS_QUOTE_TTL" default:"720h"`
	RenderTimeout time.Duration `envconfig:"FABSHOP_DOCUMENTS_RENDER_TIMEOUT" default:"10s"`
	LockTTL       time.Duration `envconfig:"FABSHOP_DOCUMENTS_LOCK_TTL" default:"30s"`
}

func (d DocumentsConfig) UsesGCS() bool {
	return strings.EqualFold(strings.TrimSpace(d.Storage), DocumentStorageGCS)
}

func (d DocumentsConfig) validate(gcs GCSConfig) error {
	switch strings.ToLower(strings.TrimSpace(d.Storage)) {
	case DocumentStorageLocal:
		if strings.TrimSpace(d.LocalDir) == "" {
			return fmt.Errorf("%s is required for local document storage", EnvDocumentsLocalDir)
		}
	case DocumentStorageGCS:
		if strings.TrimSpace(gcs.BucketName) == "" {
			return fmt.Errorf("%s is required for gcs document storage", EnvGCSBucket)
		}
	default:
		return fmt.Errorf("%s must be %q or %q", EnvDocumentsStorage, DocumentStorageLocal, DocumentStorageGCS)
	}
	return nil
}

type GCSConfig struct {
	ProjectID       string `envconfig:"FABSHOP_GCP_PROJECT_ID"`
	BucketName      string `envconfig:"FABSHOP_GCS_BUCKET_NAME"`
	CredentialsJSON string `envconfig:"FABSHOP_GCP_CREDENTIALS_JSON"`
	PublicBaseURL   string `envconfig:"FABSHOP_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type WebhooksConfig struct {
	Async          bool          `envconfig:"FABSHOP_WEBHOOKS_ASYNC" default:"true"`
	Shards         int           `envconfig:"FABSHOP_WEBHOOKS_SHARDS" default:"8"`
	QueueDepth     int           `envconfig:"FABSHOP_WEBHOOKS_QUEUE_DEPTH" default:"256"`
	MaxAttempts    uint64        `envconfig:"FABSHOP_WEBHOOKS_MAX_ATTEMPTS" default:"5"`
	BaseBackoff    time.Duration `envconfig:"FABSHOP_WEBHOOKS_BASE_BACKOFF" default:"200ms"`
	IdempotencyTTL time.Duration `envconfig:"FABSHOP_WEBHOOKS_IDEMPOTENCY_TTL" default:"168h"`
}

// IsSQLite reports whether the configured driver is SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = DefaultSQLiteDSN
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
