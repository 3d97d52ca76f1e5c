package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Server struct {
	Host        string `envconfig:"LESSON_SERVER_HOST" default:"localhost"`
	Port        string `envconfig:"LESSON_SERVER_PORT" default:"8080"`
	ReadTimeout int    `envconfig:"LESSON_SERVER_TIMEOUT" default:"10"`
}

type Db struct {
	Dialect        string `envconfig:"DB_DIALECT" default:"sqlite"`
	Source         string `envconfig:"DB_NAME" default:"lessons.db"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_DIR" default:"./migrations"`
}

type Email struct {
	User     string `envconfig:"EMAIL_USER"`
	Host     string `envconfig:"EMAIL_HOST"`
	Port     string `envconfig:"EMAIL_PORT"`
	Password string `envconfig:"EMAIL_PASSWORD"`
	From     string `envconfig:"EMAIL_FROM"`
}

type OpenAI struct {
	APIKey  string `envconfig:"OPENAI_API_KEY"`
	BaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Model   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
}

type Redis struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type Scheduler struct {
	// Six-field cron spec, every minute. The engine matches send times
	// at minute granularity, a coarser cadence misses send times.
	CronSpec        string `envconfig:"SCHEDULER_CRON_SPEC" default:"0 * * * * *"`
	InternalCron    bool   `envconfig:"SCHEDULER_INTERNAL_CRON" default:"false"`
	Workers         int    `envconfig:"SCHEDULER_WORKERS" default:"4"`
	PipelineTimeout int    `envconfig:"SCHEDULER_PIPELINE_TIMEOUT" default:"60"`
	CronSecret      string `envconfig:"CRON_SECRET" required:"true"`
}

type Config struct {
	AppURL            string `envconfig:"APP_URL" default:"http://localhost:8080"`
	UnsubscribeSecret string `envconfig:"UNSUBSCRIBE_SIGNING_SECRET" required:"true"`
	TemplatesDir      string `envconfig:"TEMPLATES_DIR" default:"./templates"`
	LogsPath          string `envconfig:"LOGS_PATH" default:"logs/lesson-subscription.log"`
	HTTPLogsPath      string `envconfig:"HTTP_LOGS_PATH" default:"logs/outbound-http.log"`

	Server    Server
	DB        Db
	Email     Email
	OpenAI    OpenAI
	Redis     Redis
	Scheduler Scheduler
}

func NewConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ServerAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}
