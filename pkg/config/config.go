package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Uploads   UploadsConfig
	WhatsApp  WhatsAppConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Outbox    OutboxConfig
	Realtime  RealtimeConfig
	Cron      CronConfig
	Features  FeatureFlagsConfig
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
	Env          string `envconfig:"VENDORCRM_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORCRM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORCRM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDORCRM_LOG_WARN_STACK" default:"false"`
	// RequestTimeout bounds every API request through chi's Timeout middleware.
	RequestTimeout time.Duration `envconfig:"VENDORCRM_REQUEST_TIMEOUT" default:"30s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORCRM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"VENDORCRM_DB_DSN"`
	// SlowQuery is the elapsed time above which a statement is logged at warn.
	SlowQuery time.Duration `envconfig:"VENDORCRM_DB_SLOW_QUERY" default:"500ms"`

	Host     string `envconfig:"VENDORCRM_DB_HOST"`
	Port     int    `envconfig:"VENDORCRM_DB_PORT" default:"5432"`
	User     string `envconfig:"VENDORCRM_DB_USER"`
	Password string `envconfig:"VENDORCRM_DB_PASSWORD"`
	Name     string `envconfig:"VENDORCRM_DB_NAME"`
	SSLMode  string `envconfig:"VENDORCRM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORCRM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORCRM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORCRM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORCRM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORCRM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORCRM_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORCRM_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORCRM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORCRM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORCRM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORCRM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORCRM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORCRM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VENDORCRM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VENDORCRM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VENDORCRM_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VENDORCRM_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VENDORCRM_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VENDORCRM_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VENDORCRM_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VENDORCRM_ARGON_KEY_LEN" default:"32"`
	TempLength       int `envconfig:"VENDORCRM_TEMP_PASSWORD_LENGTH" default:"12"`
}

type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"VENDORCRM_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"VENDORCRM_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"VENDORCRM_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	APIRequestsPerMin  int           `envconfig:"VENDORCRM_RATE_LIMIT_API_PER_MINUTE" default:"300"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"VENDORCRM_CORS_ALLOWED_ORIGINS" default:"*"`
}

type UploadsConfig struct {
	Dir         string `envconfig:"VENDORCRM_UPLOADS_DIR" default:"uploads"`
	PublicPath  string `envconfig:"VENDORCRM_UPLOADS_PUBLIC_PATH" default:"/uploads"`
	MaxUploadMB int    `envconfig:"VENDORCRM_MAX_UPLOAD_MB" default:"10"`
}

// MaxBytes returns the upload size ceiling in bytes.
func (u UploadsConfig) MaxBytes() int64 {
	if u.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(u.MaxUploadMB) << 20
}

type WhatsAppConfig struct {
	APIURL        string        `envconfig:"VENDORCRM_WHATSAPP_API_URL"`
	Token         string        `envconfig:"VENDORCRM_WHATSAPP_TOKEN"`
	PhoneNumberID string        `envconfig:"VENDORCRM_WHATSAPP_PHONE_NUMBER_ID"`
	Recipients    []string      `envconfig:"VENDORCRM_WHATSAPP_RECIPIENTS"`
	Timeout       time.Duration `envconfig:"VENDORCRM_WHATSAPP_TIMEOUT" default:"10s"`
}

// Enabled reports whether enough settings exist to send messages.
func (w WhatsAppConfig) Enabled() bool {
	return strings.TrimSpace(w.APIURL) != "" && strings.TrimSpace(w.Token) != "" && len(w.Recipients) > 0
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VENDORCRM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VENDORCRM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VENDORCRM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic string        `envconfig:"VENDORCRM_PUBSUB_DOMAIN_TOPIC"`
	Timeout     time.Duration `envconfig:"VENDORCRM_PUBSUB_PUBLISH_TIMEOUT" default:"10s"`
}

// Enabled reports whether the domain topic forwarding is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.DomainTopic) != ""
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"VENDORCRM_OUTBOX_DISPATCH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"VENDORCRM_OUTBOX_DISPATCH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"VENDORCRM_OUTBOX_MAX_ATTEMPTS" default:"10"`
	SinkTimeout    time.Duration `envconfig:"VENDORCRM_OUTBOX_SINK_TIMEOUT" default:"5s"`
}

type RealtimeConfig struct {
	Channel           string        `envconfig:"VENDORCRM_REALTIME_CHANNEL" default:"crm:events"`
	HeartbeatInterval time.Duration `envconfig:"VENDORCRM_REALTIME_HEARTBEAT" default:"25s"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"VENDORCRM_CRON_INTERVAL" default:"24h"`
	NotificationRetentionDays int           `envconfig:"VENDORCRM_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	OutboxRetentionDays       int           `envconfig:"VENDORCRM_CRON_OUTBOX_RETENTION_DAYS" default:"14"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VENDORCRM_AUTO_MIGRATE" default:"false"`
	MetricsOn   bool `envconfig:"VENDORCRM_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
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
