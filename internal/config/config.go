package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "dm"

type Config struct {
	Env        string `envconfig:"env" default:"development"`
	ServerPort string `envconfig:"server_port" default:"8080"`
	LogLevel   string `envconfig:"log_level" default:"info"`

	DBHost     string `envconfig:"db_host" default:"localhost"`
	DBPort     string `envconfig:"db_port" default:"5432"`
	DBUser     string `envconfig:"db_user" default:"dm"`
	DBPassword string `envconfig:"db_password" default:"dm_dev_password"`
	DBName     string `envconfig:"db_name" default:"dmcore"`
	DBMaxConns int32  `envconfig:"db_max_conns" default:"10"`

	RedisURL           string   `envconfig:"redis_url" default:"localhost:6379"`
	JWTSecret          string   `envconfig:"jwt_secret" default:"dev-secret-change-me"`
	AllowedOrigins     []string `envconfig:"allowed_origins" default:"http://localhost:3000"`
	BroadcastTransport string   `envconfig:"broadcast_transport" default:"hub"`

	MailgunDomain string `envconfig:"mg_domain"`
	MailgunAPIKey string `envconfig:"mg_api_key"`
	EmailFrom     string `envconfig:"email_from" default:"Messages <no-reply@dmcore.local>"`
	BaseURL       string `envconfig:"base_url" default:"http://localhost:3000"`

	FirstContactEmailEnabled bool          `envconfig:"first_contact_email_enabled" default:"true"`
	DigestEnabled            bool          `envconfig:"digest_enabled" default:"true"`
	DigestSchedule           string        `envconfig:"digest_schedule" default:"0 8 * * *"`
	DigestConcurrency        int           `envconfig:"digest_concurrency" default:"4"`
	NotificationWorkers      int           `envconfig:"notification_workers" default:"4"`
	NotificationQueueSize    int           `envconfig:"notification_queue_size" default:"256"`
	NotificationTaskTimeout  time.Duration `envconfig:"notification_task_timeout" default:"30s"`
}

const (
	TransportHub   = "hub"
	TransportRedis = "redis"
)

// Load reads .env (outside production) and then the DM_* environment.
func Load() (*Config, error) {
	if os.Getenv("DM_ENV") != "production" {
		// Missing .env is normal in containers.
		_ = godotenv.Load()
	}

	c := &Config{}
	if err := envconfig.Process(envPrefix, c); err != nil {
		return nil, fmt.Errorf("processing env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.BroadcastTransport {
	case TransportHub, TransportRedis:
	default:
		return fmt.Errorf("unknown broadcast transport %q", c.BroadcastTransport)
	}
	if c.NotificationWorkers < 1 {
		return fmt.Errorf("notification workers must be positive, got %d", c.NotificationWorkers)
	}
	if c.NotificationQueueSize < 1 {
		return fmt.Errorf("notification queue size must be positive, got %d", c.NotificationQueueSize)
	}
	if c.DBMaxConns < 2 {
		return fmt.Errorf("db max conns must be at least 2, got %d", c.DBMaxConns)
	}
	if c.DigestConcurrency < 1 {
		return fmt.Errorf("digest concurrency must be positive, got %d", c.DigestConcurrency)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DatabaseURL builds the pgx connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) MailgunEnabled() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != ""
}
