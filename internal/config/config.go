// Package config handles loading, parsing, and validating the YAML
// configuration of a bot, with .env files and environment variable
// overrides for secrets and endpoints.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Guliveer/guildkit/internal/cache"
	"github.com/Guliveer/guildkit/internal/client"
	"github.com/Guliveer/guildkit/internal/constants"
	"github.com/Guliveer/guildkit/internal/gateway"
	"github.com/Guliveer/guildkit/internal/logger"
)

// DefaultConfigPath is the config file used when none is given.
const DefaultConfigPath = "guildkit.yaml"

// Environment variables that override the file.
const (
	EnvToken      = "GUILDKIT_TOKEN"
	EnvAPIURL     = "GUILDKIT_API_URL"
	EnvGatewayURL = "GUILDKIT_GATEWAY_URL"
	EnvStatusAddr = "GUILDKIT_STATUS_ADDR"
	EnvLogLevel   = "LOG_LEVEL"
)

// ErrMissingToken is returned by Validate when no bot token is configured.
var ErrMissingToken = errors.New("bot token is required (set token or " + EnvToken + ")")

// Load reads the YAML file at path, fills defaults and applies environment
// overrides. A missing file at the default path is not an error, so a bot
// can run from environment variables alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading env file %s: %w", p, err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.APIURL == "" {
		cfg.APIURL = constants.APIURL
	}

	gw := &cfg.Gateway
	if gw.URL == "" {
		gw.URL = constants.GatewayURL
	}
	if gw.ProtocolVersion == 0 {
		gw.ProtocolVersion = constants.ProtocolVersion
	}
	if gw.Heartbeat == 0 {
		gw.Heartbeat = constants.DefaultHeartbeatInterval
	}
	if gw.DialTimeout == 0 {
		gw.DialTimeout = constants.DefaultDialTimeout
	}
	if gw.Backoff.Base == 0 {
		gw.Backoff.Base = constants.DefaultReconnectBase
	}
	if gw.Backoff.Max == 0 {
		gw.Backoff.Max = constants.DefaultReconnectMax
	}
	if gw.Backoff.Multiplier == 0 {
		gw.Backoff.Multiplier = constants.DefaultReconnectMultiplier
	}
	if gw.Backoff.Jitter == nil {
		j := constants.DefaultReconnectJitter
		gw.Backoff.Jitter = &j
	}

	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = constants.DefaultHTTPTimeout
	}
	if cfg.REST.MaxRetries == nil {
		n := constants.DefaultMaxRetries
		cfg.REST.MaxRetries = &n
	}
	if cfg.REST.RetryBackoff == 0 {
		cfg.REST.RetryBackoff = constants.DefaultRetryBackoff
	}

	if cfg.Cache.Defaults.Enabled == nil {
		enabled := true
		cfg.Cache.Defaults.Enabled = &enabled
	}
	if cfg.Cache.Defaults.MaxSize == nil {
		unbounded := 0
		cfg.Cache.Defaults.MaxSize = &unbounded
	}
	if cfg.Cache.Defaults.Policy == "" {
		cfg.Cache.Defaults.Policy = cache.EvictLRU.String()
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}
	if cfg.PrefetchWorkers == 0 {
		cfg.PrefetchWorkers = constants.DefaultPrefetchWorkers
	}
}

// applyEnvOverrides overlays environment variables on top of the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(EnvGatewayURL); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv(EnvStatusAddr); v != "" {
		cfg.Status.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the configuration for common errors.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Token) == "" {
		return ErrMissingToken
	}

	if err := checkURL("api_url", cfg.APIURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("gateway.url", cfg.Gateway.URL, "ws", "wss"); err != nil {
		return err
	}
	if cfg.Gateway.ProtocolVersion < 1 {
		return fmt.Errorf("gateway.protocol_version must be positive, got %d", cfg.Gateway.ProtocolVersion)
	}

	b := cfg.Gateway.Backoff
	if b.Base <= 0 || b.Max < b.Base {
		return fmt.Errorf("gateway.backoff: need 0 < base <= max, got base=%s max=%s", b.Base, b.Max)
	}
	if b.Multiplier < 1 {
		return fmt.Errorf("gateway.backoff.multiplier must be at least 1, got %g", b.Multiplier)
	}
	if b.Jitter != nil && (*b.Jitter < 0 || *b.Jitter > 1) {
		return fmt.Errorf("gateway.backoff.jitter must be within [0, 1], got %g", *b.Jitter)
	}
	if b.MaxAttempts < 0 {
		return fmt.Errorf("gateway.backoff.max_attempts must not be negative, got %d", b.MaxAttempts)
	}

	if cfg.REST.MaxRetries != nil && *cfg.REST.MaxRetries < 0 {
		return fmt.Errorf("rest.max_retries must not be negative, got %d", *cfg.REST.MaxRetries)
	}

	if err := checkCache("cache.defaults", cfg.Cache.Defaults); err != nil {
		return err
	}
	for kind, cc := range cfg.Cache.Kinds {
		if !slices.Contains(client.Kinds(), kind) {
			return fmt.Errorf("cache.kinds: unknown kind %q (known: %s)", kind, strings.Join(client.Kinds(), ", "))
		}
		if err := checkCache("cache.kinds."+kind, cc); err != nil {
			return err
		}
	}

	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("%s must be an absolute %s URL, got %q", field, strings.Join(schemes, "/"), raw)
	}
	return nil
}

func checkCache(field string, cc CacheConfig) error {
	if cc.MaxSize != nil && *cc.MaxSize < 0 {
		return fmt.Errorf("%s.max_size must not be negative, got %d", field, *cc.MaxSize)
	}
	if cc.Policy != "" {
		if _, err := cache.ParsePolicy(cc.Policy); err != nil {
			return fmt.Errorf("%s.policy: %w", field, err)
		}
	}
	return nil
}

// resolve merges a per-kind override onto the defaults.
func (s CacheSection) resolve(kind string) (cache.Config, error) {
	merged := s.Defaults
	if o, ok := s.Kinds[kind]; ok {
		if o.Enabled != nil {
			merged.Enabled = o.Enabled
		}
		if o.MaxSize != nil {
			merged.MaxSize = o.MaxSize
		}
		if o.Policy != "" {
			merged.Policy = o.Policy
		}
	}

	policy, err := cache.ParsePolicy(merged.Policy)
	if err != nil {
		return cache.Config{}, fmt.Errorf("cache %s: %w", kind, err)
	}
	cfg := cache.Config{Caching: true, Policy: policy}
	if merged.Enabled != nil {
		cfg.Caching = *merged.Enabled
	}
	if merged.MaxSize != nil {
		cfg.MaxCache = *merged.MaxSize
	}
	return cfg, nil
}

// ClientOptions converts the configuration into client options. cfg must
// have been loaded with Load so defaults are filled.
func (cfg *Config) ClientOptions(log *logger.Logger) (client.Options, error) {
	opts := client.DefaultOptions()
	opts.Token = cfg.Token
	opts.APIURL = cfg.APIURL
	opts.Logger = log
	opts.PrefetchWorkers = cfg.PrefetchWorkers

	opts.HTTPTimeout = cfg.REST.Timeout
	opts.RetryBackoff = cfg.REST.RetryBackoff
	if cfg.REST.MaxRetries != nil {
		opts.MaxRetries = *cfg.REST.MaxRetries
	}

	b := cfg.Gateway.Backoff
	opts.Gateway = gateway.Config{
		URL:               cfg.Gateway.URL,
		ProtocolVersion:   cfg.Gateway.ProtocolVersion,
		HeartbeatInterval: cfg.Gateway.Heartbeat,
		DialTimeout:       cfg.Gateway.DialTimeout,
		Backoff: gateway.Backoff{
			Base:        b.Base,
			Max:         b.Max,
			Multiplier:  b.Multiplier,
			MaxAttempts: b.MaxAttempts,
		},
	}
	if b.Jitter != nil {
		opts.Gateway.Backoff.Jitter = *b.Jitter
	}

	opts.Cache = make(map[string]cache.Config, len(client.Kinds()))
	for _, kind := range client.Kinds() {
		cc, err := cfg.Cache.resolve(kind)
		if err != nil {
			return client.Options{}, err
		}
		opts.Cache[kind] = cc
	}

	return opts, nil
}

// LoggerConfig converts the log section into logger settings. colored is the
// caller's terminal detection result and can only turn color off.
func (cfg *Config) LoggerConfig(colored bool) logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = logger.ParseLevel(cfg.Log.Level)
	lc.LogDir = cfg.Log.Dir
	lc.Colored = colored && cfg.Log.IsColored()
	return lc
}
