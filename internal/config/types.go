package config

import "time"

// Config is the full bot configuration loaded from YAML and overlaid with
// environment variables.
type Config struct {
	// Token is normally supplied through GUILDKIT_TOKEN rather than the file.
	Token  string `yaml:"token"`
	APIURL string `yaml:"api_url"`

	Gateway GatewayConfig `yaml:"gateway"`
	REST    RESTConfig    `yaml:"rest"`
	Cache   CacheSection  `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
	Status  StatusConfig  `yaml:"status"`

	PrefetchWorkers int `yaml:"prefetch_workers"`
}

// GatewayConfig holds the WebSocket gateway settings.
type GatewayConfig struct {
	URL             string        `yaml:"url"`
	ProtocolVersion int           `yaml:"protocol_version"`
	Heartbeat       time.Duration `yaml:"heartbeat"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	Backoff         BackoffConfig `yaml:"backoff"`
}

// BackoffConfig is the reconnect delay policy.
type BackoffConfig struct {
	Base        time.Duration `yaml:"base"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      *float64      `yaml:"jitter,omitempty"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// RESTConfig holds the HTTP API settings.
type RESTConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   *int          `yaml:"max_retries,omitempty"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// CacheSection holds the default cache settings and per-kind overrides.
type CacheSection struct {
	Defaults CacheConfig            `yaml:"defaults"`
	Kinds    map[string]CacheConfig `yaml:"kinds"`
}

// CacheConfig configures one entity cache. Unset fields inherit from the
// defaults.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	MaxSize *int   `yaml:"max_size,omitempty"`
	Policy  string `yaml:"policy,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir"`
	Colored *bool  `yaml:"colored,omitempty"`
}

// StatusConfig holds the status HTTP server settings. An empty Addr disables it.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// IsColored returns whether colored console output is enabled (default true).
func (l LogConfig) IsColored() bool {
	if l.Colored == nil {
		return true
	}
	return *l.Colored
}
