package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"paperlane"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"50"`
	SlowSQL  string `envconfig:"DB_SLOW_THRESHOLD" default:"1s"`
}

type svcConfig struct {
	Address         string   `envconfig:"PAPERLANE_ADDRESS" default:":3443"`
	MetricsAddress  string   `envconfig:"PAPERLANE_METRICS_ADDRESS" default:":8080"`
	BaseUrl         string   `envconfig:"PAPERLANE_BASE_URL" default:"https://localhost:3443"`
	LogLevel        string   `envconfig:"PAPERLANE_LOG_LEVEL" default:"info"`
	LogFormat       string   `envconfig:"PAPERLANE_LOG_FORMAT" default:"console"`
	GatewayPrefix   string   `envconfig:"PAPERLANE_GATEWAY_PREFIX" default:""`
	AllowedOrigins  []string `envconfig:"PAPERLANE_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MigrationFolder string   `envconfig:"PAPERLANE_MIGRATIONS_FOLDER" default:""`
	Auth            Auth
	Engine          Engine
	Reconciler      Reconciler
	Storage         Storage
	Events          Events
}

type Auth struct {
	AuthenticationType string `envconfig:"PAPERLANE_AUTH" default:""`
	JwkCertURL         string `envconfig:"PAPERLANE_JWK_URL" default:""`
	LocalSecret        string `envconfig:"PAPERLANE_LOCAL_SECRET" default:""`
}

type Engine struct {
	URL     string        `envconfig:"PAPERLANE_ENGINE_URL" default:"http://localhost:8000"`
	APIKey  string        `envconfig:"PAPERLANE_ENGINE_API_KEY" default:""`
	Timeout time.Duration `envconfig:"PAPERLANE_ENGINE_TIMEOUT" default:"30s"`
}

type Reconciler struct {
	Enabled     bool          `envconfig:"PAPERLANE_RECONCILER_ENABLED" default:"true"`
	Interval    time.Duration `envconfig:"PAPERLANE_RECONCILE_INTERVAL" default:"5s"`
	MaxBackoff  time.Duration `envconfig:"PAPERLANE_RECONCILE_MAX_BACKOFF" default:"5m"`
	JobDeadline time.Duration `envconfig:"PAPERLANE_RECONCILE_JOB_DEADLINE" default:"2h"`
	BatchSize   int           `envconfig:"PAPERLANE_RECONCILE_BATCH_SIZE" default:"50"`
}

// Storage selects where uploaded documents are read from before they are sent to the engine.
type Storage struct {
	Type      string `envconfig:"PAPERLANE_STORAGE" default:"local"`
	LocalRoot string `envconfig:"PAPERLANE_STORAGE_LOCAL_ROOT" default:"./uploads"`
	Endpoint  string `envconfig:"PAPERLANE_S3_ENDPOINT" default:""`
	Bucket    string `envconfig:"PAPERLANE_S3_BUCKET" default:"paperlane"`
	AccessKey string `envconfig:"PAPERLANE_S3_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"PAPERLANE_S3_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"PAPERLANE_S3_USE_SSL" default:"false"`
}

type Events struct {
	SinkURL    string `envconfig:"PAPERLANE_EVENTS_SINK_URL" default:""`
	Topic      string `envconfig:"PAPERLANE_EVENTS_TOPIC" default:"paperlane.activity"`
	BufferSize int    `envconfig:"PAPERLANE_EVENTS_BUFFER_SIZE" default:"1024"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a configuration backed by a private in-memory sqlite database.
// Each call gets its own database so test suites do not share rows.
func NewDefault() *Config {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
	cfg.Database.Type = "sqlite"
	cfg.Database.Name = fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	return cfg
}
