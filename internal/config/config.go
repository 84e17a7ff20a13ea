package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	SportData ProviderConfig  `mapstructure:"sportdata"`
	OddsFeed  ProviderConfig  `mapstructure:"oddsfeed"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	EventBus  EventBusConfig  `mapstructure:"event_bus"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Sources   SourcesConfig   `mapstructure:"sources"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	FullSync string `mapstructure:"full_sync"`
	LiveSync string `mapstructure:"live_sync"`
	OddsSync string `mapstructure:"odds_sync"`
}

// ProviderConfig describes one upstream API: base URL, auth header value,
// request budget and resilience policy. Both providers share the shape.
type ProviderConfig struct {
	BaseURL                 string        `mapstructure:"base_url"`
	APIKey                  string        `mapstructure:"api_key"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	DailyLimit              int           `mapstructure:"daily_limit"`
	PerMinuteLimit          int           `mapstructure:"per_minute_limit"`
	MaxRetries              int           `mapstructure:"max_retries"`
	RetryBaseDelay          time.Duration `mapstructure:"retry_base_delay"`
	BreakerFailureThreshold int           `mapstructure:"breaker_failure_threshold"`
	BreakerSuccessThreshold int           `mapstructure:"breaker_success_threshold"`
	BreakerCooldown         time.Duration `mapstructure:"breaker_cooldown"`
}

type IngestConfig struct {
	EnabledSports []string       `mapstructure:"enabled_sports"`
	BatchSize     int            `mapstructure:"batch_size"`
	DaysAhead     int            `mapstructure:"days_ahead"`
	DaysBehind    int            `mapstructure:"days_behind"`
	Backfill      BackfillConfig `mapstructure:"backfill"`
}

// BackfillConfig controls the demo-population policy for quota-scarce sports:
// when a sport yields too little upcoming inventory, older seasons are fetched
// and time-shifted into the near future. Disabled unless explicitly enabled.
type BackfillConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MinUpcoming int           `mapstructure:"min_upcoming"`
	Seasons     []string      `mapstructure:"seasons"`
	ShiftWindow time.Duration `mapstructure:"shift_window"`
}

type EventBusConfig struct {
	Mode            string        `mapstructure:"mode"` // inproc | amqp
	AMQPURL         string        `mapstructure:"amqp_url"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
}

type GatewayConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	SendBufferSize int  `mapstructure:"send_buffer_size"`
}

// SourcesConfig is the static provider-priority table used by the merge
// stage; higher priority wins when two sources describe the same fields.
type SourcesConfig struct {
	Priority map[string]int `mapstructure:"priority"`
}

func Load(path string) (Config, error) {
	// .env is optional; values there feed viper's AutomaticEnv pass.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.full_sync", "0 0 */6 * * *")
	v.SetDefault("cron.live_sync", "0 */2 * * * *")
	v.SetDefault("cron.odds_sync", "0 */15 * * * *")
	v.SetDefault("sportdata.base_url", "https://v3.football.api-sports.io")
	v.SetDefault("sportdata.timeout", "15s")
	v.SetDefault("sportdata.daily_limit", 100)
	v.SetDefault("sportdata.per_minute_limit", 10)
	v.SetDefault("sportdata.max_retries", 2)
	v.SetDefault("sportdata.retry_base_delay", "500ms")
	v.SetDefault("sportdata.breaker_failure_threshold", 5)
	v.SetDefault("sportdata.breaker_success_threshold", 1)
	v.SetDefault("sportdata.breaker_cooldown", "60s")
	v.SetDefault("oddsfeed.base_url", "https://api.the-odds-feed.com/v4")
	v.SetDefault("oddsfeed.timeout", "15s")
	v.SetDefault("oddsfeed.daily_limit", 500)
	v.SetDefault("oddsfeed.per_minute_limit", 0)
	v.SetDefault("oddsfeed.max_retries", 2)
	v.SetDefault("oddsfeed.retry_base_delay", "500ms")
	v.SetDefault("oddsfeed.breaker_failure_threshold", 5)
	v.SetDefault("oddsfeed.breaker_success_threshold", 1)
	v.SetDefault("oddsfeed.breaker_cooldown", "60s")
	v.SetDefault("ingest.enabled_sports", []string{"football", "basketball", "nba"})
	v.SetDefault("ingest.batch_size", 50)
	v.SetDefault("ingest.days_ahead", 7)
	v.SetDefault("ingest.days_behind", 1)
	v.SetDefault("ingest.backfill.enabled", false)
	v.SetDefault("ingest.backfill.min_upcoming", 5)
	v.SetDefault("ingest.backfill.seasons", []string{"2023", "2022"})
	v.SetDefault("ingest.backfill.shift_window", "72h")
	v.SetDefault("event_bus.mode", "inproc")
	v.SetDefault("event_bus.max_retries", 3)
	v.SetDefault("event_bus.retry_backoff", "200ms")
	v.SetDefault("event_bus.dead_letter_topic", "sportsync.dead_letter")
	v.SetDefault("gateway.enabled", true)
	v.SetDefault("gateway.send_buffer_size", 32)
	v.SetDefault("sources.priority", map[string]int{"sportdata": 100, "oddsfeed": 50})

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional when everything comes from env/defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !strings.Contains(err.Error(), "no such file") {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
