package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/log"
)

// EnvConfigPath names the environment variable holding the config path
const EnvConfigPath = "MBOT_CONFIG"

// Config holds the complete application configuration
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general"`
	Bot     BotConfig     `toml:"bot" yaml:"bot"`
	Gateway GatewayConfig `toml:"gateway" yaml:"gateway"`
	Store   StoreConfig   `toml:"store" yaml:"store"`
	APIs    []APIConfig   `toml:"apis" yaml:"apis"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name        string   `toml:"name" yaml:"name"`
	Environment string   `toml:"environment" yaml:"environment"`
	LogLevel    string   `toml:"log_level" yaml:"log_level"`
	LogFormat   string   `toml:"log_format" yaml:"log_format"`
	Locale      string   `toml:"locale" yaml:"locale"`
	LocalesDir  string   `toml:"locales_dir" yaml:"locales_dir"`
	Superusers  []string `toml:"superusers" yaml:"superusers"`
}

// BotConfig holds dispatch settings
type BotConfig struct {
	CommandPrefixes []string `toml:"command_prefixes" yaml:"command_prefixes"`
	ContinuationTTL Duration `toml:"continuation_ttl" yaml:"continuation_ttl"`
}

// GatewayConfig holds the websocket gateway settings
type GatewayConfig struct {
	Host         string   `toml:"host" yaml:"host"`
	Port         int      `toml:"port" yaml:"port"`
	Path         string   `toml:"path" yaml:"path"`
	ReadTimeout  Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout" yaml:"write_timeout"`
}

// StoreConfig holds the invocation log settings
type StoreConfig struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	Path          string `toml:"path" yaml:"path"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

// APIConfig declares one outbound API
type APIConfig struct {
	Name     string   `toml:"name" yaml:"name"`
	URL      string   `toml:"url" yaml:"url"`
	Timeout  Duration `toml:"timeout" yaml:"timeout"`
	Cooldown Duration `toml:"cooldown" yaml:"cooldown"`
	Disabled bool     `toml:"disabled" yaml:"disabled"`
	Proxy    string   `toml:"proxy" yaml:"proxy"`
}

// Duration wraps time.Duration for TOML and YAML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses a duration scalar
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a TOML or YAML file, chosen by extension
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mboterror.Newf("config file not found: %s", path).
				WithCode(mboterror.CodeMissingConfig).
				WithOperation("config.Load")
		}
		return nil, mboterror.Wrap(err, "failed to read config").WithCode(mboterror.CodeInvalidConfig).WithOperation("config.Load")
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	default:
		var md toml.MetaData
		md, err = toml.Decode(string(data), &cfg)
		if err == nil {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				err = fmt.Errorf("unknown keys: %v", undecoded)
			}
		}
	}
	if err != nil {
		return nil, mboterror.Wrap(err, "failed to parse config").
			WithCode(mboterror.CodeInvalidConfig).
			WithOperation("config.Load").
			WithDetail("path", path)
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration from MBOT_CONFIG or a default location.
// Without any file the defaults are returned.
func LoadFromEnv() (*Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return Load(path)
	}

	defaultPaths := []string{
		"./configs/config.toml",
		"./config.toml",
		filepath.Join(os.Getenv("HOME"), ".config/mbot/config.toml"),
	}
	for _, p := range defaultPaths {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return Default(), nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.General.Name == "" {
		c.General.Name = "mBOT"
	}
	if c.General.Environment == "" {
		c.General.Environment = "development"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "text"
	}
	if c.General.Locale == "" {
		c.General.Locale = "zh-CN"
	}

	if c.Bot.CommandPrefixes == nil {
		c.Bot.CommandPrefixes = []string{"/"}
	}
	if c.Bot.ContinuationTTL.Duration == 0 {
		c.Bot.ContinuationTTL.Duration = 5 * time.Minute
	}

	if c.Gateway.Host == "" {
		c.Gateway.Host = "127.0.0.1"
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = 8765
	}
	if c.Gateway.Path == "" {
		c.Gateway.Path = "/ws"
	}
	if c.Gateway.ReadTimeout.Duration == 0 {
		c.Gateway.ReadTimeout.Duration = 60 * time.Second
	}
	if c.Gateway.WriteTimeout.Duration == 0 {
		c.Gateway.WriteTimeout.Duration = 10 * time.Second
	}

	if c.Store.Path == "" {
		c.Store.Path = "./data/mbot.db"
	}
	if c.Store.RetentionDays == 0 {
		c.Store.RetentionDays = 30
	}

	for i := range c.APIs {
		if c.APIs[i].Timeout.Duration == 0 {
			c.APIs[i].Timeout.Duration = 10 * time.Second
		}
	}
}

// expandEnvVars expands environment variables in path and URL values
func (c *Config) expandEnvVars() {
	c.Store.Path = os.ExpandEnv(c.Store.Path)
	c.General.LocalesDir = os.ExpandEnv(c.General.LocalesDir)
	for i := range c.APIs {
		c.APIs[i].URL = os.ExpandEnv(c.APIs[i].URL)
		c.APIs[i].Proxy = os.ExpandEnv(c.APIs[i].Proxy)
	}
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	invalid := func(field, reason string) error {
		return mboterror.Newf("invalid config: %s %s", field, reason).
			WithCode(mboterror.CodeInvalidConfig).
			WithOperation("config.Validate").
			WithDetail("field", field)
	}

	if _, err := log.ParseLevel(c.General.LogLevel); err != nil {
		return invalid("general.log_level", err.Error())
	}
	if _, err := log.ParseFormat(c.General.LogFormat); err != nil {
		return invalid("general.log_format", err.Error())
	}
	if len(c.Bot.CommandPrefixes) == 0 {
		return invalid("bot.command_prefixes", "must not be empty")
	}
	for _, p := range c.Bot.CommandPrefixes {
		if strings.TrimSpace(p) != p {
			return invalid("bot.command_prefixes", fmt.Sprintf("prefix %q contains whitespace", p))
		}
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return invalid("gateway.port", "out of range")
	}
	if !strings.HasPrefix(c.Gateway.Path, "/") {
		return invalid("gateway.path", "must start with '/'")
	}
	if c.Store.RetentionDays < 0 {
		return invalid("store.retention_days", "must not be negative")
	}

	seen := make(map[string]bool, len(c.APIs))
	for i, api := range c.APIs {
		field := fmt.Sprintf("apis[%d]", i)
		if strings.TrimSpace(api.Name) == "" {
			return invalid(field+".name", "is required")
		}
		if seen[api.Name] {
			return invalid(field+".name", fmt.Sprintf("duplicate api %q", api.Name))
		}
		seen[api.Name] = true
		if strings.TrimSpace(api.URL) == "" {
			return invalid(field+".url", "is required")
		}
		if api.Cooldown.Duration < 0 {
			return invalid(field+".cooldown", "must not be negative")
		}
	}
	return nil
}

// GatewayAddress returns host:port of the websocket gateway
func (c *Config) GatewayAddress() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

// PrimaryPrefix returns the command prefix quoted in help texts
func (c *Config) PrimaryPrefix() string {
	for _, p := range c.Bot.CommandPrefixes {
		if p != "" {
			return p
		}
	}
	return ""
}

// API returns the API configuration with the given name
func (c *Config) API(name string) (APIConfig, bool) {
	for _, a := range c.APIs {
		if a.Name == name {
			return a, true
		}
	}
	return APIConfig{}, false
}
