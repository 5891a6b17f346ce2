package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Presence/internal/backoff"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PRESENCE"

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	SendBuffer int           `mapstructure:"send_buffer"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Typing    TypingConfig    `mapstructure:"typing"`
	Reconnect backoff.Policy  `mapstructure:"reconnect"`
	Query     QueryConfig     `mapstructure:"query"`
	EventLog  EventLogConfig  `mapstructure:"eventlog"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type TypingConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Sweep    time.Duration `mapstructure:"sweep"`
}

type QueryConfig struct {
	backoff.Policy `mapstructure:",squash"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

type EventLogConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	Capacity  int    `mapstructure:"capacity"`
	Buffer    int    `mapstructure:"buffer"`
	SyncLimit int    `mapstructure:"sync_limit"`
}

type RateLimitConfig struct {
	Messages int           `mapstructure:"messages"`
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "presence-dev-secret")
	v.SetDefault("log_level", "info")

	v.SetDefault("heartbeat.interval", "25s")

	v.SetDefault("typing.debounce", "500ms")
	v.SetDefault("typing.timeout", "3s")
	v.SetDefault("typing.sweep", "1s")

	v.SetDefault("reconnect.initial", "1s")
	v.SetDefault("reconnect.max", "16s")
	v.SetDefault("reconnect.max_attempts", 5)

	v.SetDefault("query.initial", "1s")
	v.SetDefault("query.max", "30s")
	v.SetDefault("query.max_attempts", 3)
	v.SetDefault("query.poll_interval", "1s")

	v.SetDefault("eventlog.driver", "memory")
	v.SetDefault("eventlog.path", "presence.sqlite")
	v.SetDefault("eventlog.capacity", 4096)
	v.SetDefault("eventlog.buffer", 256)
	v.SetDefault("eventlog.sync_limit", 500)

	v.SetDefault("ratelimit.messages", 5)
	v.SetDefault("ratelimit.interval", "1s")
}

// Load reads path, or config/config.<CONFIG_ENV>.yaml when path is empty.
// A missing file is not an error. PRESENCE_* variables and flags override
// the file; flags are matched by key, e.g. --eventlog.driver.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := path
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("eventlog", cfg.EventLog.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.EventLog.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown eventlog driver %q", c.EventLog.Driver)
	}
	if c.Reconnect.MaxAttempts <= 0 || c.Query.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive")
	}
	return nil
}
