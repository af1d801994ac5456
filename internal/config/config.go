// Package config provides layered configuration (flag > env > file > default)
// for the origin server, following the teacher's viper-based approach.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "HLSVOD"

// Defaults mirror spec §6 exactly.
const (
	DefaultBind                  = "127.0.0.1:3000"
	DefaultCacheMaxSegments       = 512
	DefaultCacheMemoryMB          = 256
	DefaultCacheTTLSecs           = 300
	DefaultSegmentDurationSecs    = 4.0
	DefaultAACBitrate             = 128000
	DefaultAudioSampleRate        = 48000
	DefaultLogLevel               = "info"
	DefaultMaxConcurrentStreams   = 100
	DefaultReaperIntervalSecs     = 60
)

// ServerConfig is the `[server]` section.
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	CORSEnabled bool   `mapstructure:"cors_enabled"`
	TLSCertFile string `mapstructure:"tls_cert"`
	TLSKeyFile  string `mapstructure:"tls_key"`
	MediaRoot   string `mapstructure:"media_root"`
}

// Bind returns host:port as a single listen address.
func (s ServerConfig) Bind() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TLSEnabled reports whether both cert and key were supplied (spec §6: both
// required to enable TLS — supplying only one is a config error).
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// CacheConfig is the `[cache]` section.
type CacheConfig struct {
	MaxMemoryMB  ByteSize `mapstructure:"max_memory_mb"`
	MaxSegments  int      `mapstructure:"max_segments"`
	TTLSecs      Duration `mapstructure:"ttl_secs"`
}

// SegmentConfig is the `[segment]` section.
type SegmentConfig struct {
	TargetDurationSecs float64 `mapstructure:"target_duration_secs"`
}

// AudioConfig is the `[audio]` section.
type AudioConfig struct {
	TargetSampleRate   int  `mapstructure:"target_sample_rate"`
	AACBitrate         int  `mapstructure:"aac_bitrate"`
	EnableTranscoding  bool `mapstructure:"enable_transcoding"`
}

// LimitsConfig is the `[limits]` section.
type LimitsConfig struct {
	MaxConcurrentStreams int `mapstructure:"max_concurrent_streams"`
}

// LoggingConfig controls internal/observability's logger construction.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	RedactPaths bool   `mapstructure:"redact_paths"`
}

// Config is the fully resolved configuration for one server process.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Segment SegmentConfig `mapstructure:"segment"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`

	ReaperInterval Duration `mapstructure:"reaper_interval"`
	ConfigFile     string   `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.cors_enabled", false)
	v.SetDefault("server.media_root", "")

	v.SetDefault("cache.max_memory_mb", int64(DefaultCacheMemoryMB*mb))
	v.SetDefault("cache.max_segments", DefaultCacheMaxSegments)
	v.SetDefault("cache.ttl_secs", DefaultCacheTTLSecs*time.Second)

	v.SetDefault("segment.target_duration_secs", DefaultSegmentDurationSecs)

	v.SetDefault("audio.target_sample_rate", DefaultAudioSampleRate)
	v.SetDefault("audio.aac_bitrate", DefaultAACBitrate)
	v.SetDefault("audio.enable_transcoding", true)

	v.SetDefault("limits.max_concurrent_streams", DefaultMaxConcurrentStreams)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.redact_paths", false)

	v.SetDefault("reaper_interval", DefaultReaperIntervalSecs*time.Second)
}

// BindFlags wires the cobra/pflag flag set described in spec §6 onto a
// viper instance, following the teacher's BindPFlag-per-flag pattern. Flags
// whose CLI value needs reshaping onto the Config struct (--bind splits into
// host+port, --cache-memory-mb/--cache-ttl-secs parse human-readable
// size/duration text) are deliberately left unbound here and instead handled
// as explicit string params to Load, since mapstructure has no field to
// receive their raw combined form.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"media-root":            "server.media_root",
		"cache-max-segments":    "cache.max_segments",
		"segment-duration-secs": "segment.target_duration_secs",
		"aac-bitrate":           "audio.aac_bitrate",
		"audio-sample-rate":     "audio.target_sample_rate",
		"tls-cert":              "server.tls_cert",
		"tls-key":               "server.tls_key",
		"log-level":             "logging.level",
	}
	for flagName, key := range bindings {
		f := flags.Lookup(flagName)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind flag %q: %w", flagName, err)
		}
	}
	return nil
}

// Load resolves a Config from (in ascending priority) defaults, an optional
// config file, environment variables prefixed HLSVOD_, and already-bound
// CLI flags. bind and cacheMemoryMB/cacheTTL are plain-string CLI values
// handled outside mapstructure because they combine a host:port or a
// human-readable size/duration onto struct fields with different shapes.
func Load(v *viper.Viper, configFile, bindAddr, cacheMemoryMB, cacheTTL string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.ConfigFile = configFile

	if bindAddr != "" {
		host, port, err := splitBind(bindAddr)
		if err != nil {
			return nil, fmt.Errorf("config: --bind: %w", err)
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}
	if cacheMemoryMB != "" {
		sz, err := ParseByteSize(cacheMemoryMB)
		if err != nil {
			return nil, fmt.Errorf("config: --cache-memory-mb: %w", err)
		}
		cfg.Cache.MaxMemoryMB = sz
	}
	if cacheTTL != "" {
		d, err := ParseDuration(cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("config: --cache-ttl-secs: %w", err)
		}
		cfg.Cache.TTLSecs = d
	}

	return &cfg, cfg.Validate()
}

func splitBind(addr string) (host string, port int, err error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("expected host:port, got %q", addr)
	}
	host = addr[:idx]
	if host == "" {
		host = "0.0.0.0"
	}
	var p int
	if _, err := fmt.Sscanf(addr[idx+1:], "%d", &p); err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return host, p, nil
}

// Validate enforces the CLI's documented constraints (spec §6): TLS needs
// both cert and key, not just one.
func (c *Config) Validate() error {
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("config: --tls-cert and --tls-key must both be set to enable TLS")
	}
	if c.Segment.TargetDurationSecs <= 0 {
		return fmt.Errorf("config: segment.target_duration_secs must be positive")
	}
	return nil
}
