package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/esc4n0rx/streamhive/globals"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the global configuration object, filled from the configuration
// file, environment (STREAMHIVE_*) and command-line flags.
type Config struct {
	AuthConfig        AuthConfig        `mapstructure:"auth"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	LimitsConfig      LimitsConfig      `mapstructure:"limits"`
	ModerationConfig  ModerationConfig  `mapstructure:"moderation"`
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	LogLevel          string            `mapstructure:"log_level"`
}

// AuthConfig configures connection authentication. Bearer tokens are verified
// as HS256 JWTs against JWTSecret; alternatively a client may present an
// OIDC ID token together with the name of a configured provider.
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	OIDCConfigs []OIDCConfig  `mapstructure:"oidc"`
}

// An OIDCConfig object configures an OpenID Connect provider usable for
// connection authentication. The user id is taken from the e-mail claim.
type OIDCConfig struct {
	Name        string `mapstructure:"name"`
	ClientId    string `mapstructure:"client_id"`
	ProviderUrl string `mapstructure:"provider_url"`
}

// PersistenceConfig selects the storage backend: "sqlite" or "postgres"
// (gorm) or "buntdb" (embedded key/value store).
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// LimitsConfig configures the sliding-window rate limiters, the chat
// cooldown and the typing indicator auto-expiry.
type LimitsConfig struct {
	EventMax       int           `mapstructure:"event_max"`
	EventWindow    time.Duration `mapstructure:"event_window"`
	ChatMax        int           `mapstructure:"chat_max"`
	ChatWindow     time.Duration `mapstructure:"chat_window"`
	ChatCooldown   time.Duration `mapstructure:"chat_cooldown"`
	TypingExpiry   time.Duration `mapstructure:"typing_expiry"`
	MaxMessageSize int           `mapstructure:"max_message_size"`
}

// ModerationConfig configures the chat content filter. BlockedTerms are
// masked in place; BlockExpressions are expr programs evaluated against the
// message environment, a true result rejects the message.
type ModerationConfig struct {
	BlockedTerms     []string `mapstructure:"blocked_terms"`
	BlockExpressions []string `mapstructure:"block_expressions"`
}

// HistoryConfig bounds chat history fetches.
type HistoryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.Replace(name, "-", "_", -1))
}

// ReadConfiguration reads and parses the configuration located at configPath,
// which can either point to a single TOML file or to a directory, in which
// case all *.toml files in this directory are concatenated.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("auth.token_ttl", 24*time.Hour)
	viper.SetDefault("persistence.type", "sqlite")
	viper.SetDefault("persistence.dsn", "streamhive.db")
	viper.SetDefault("limits.event_max", 30)
	viper.SetDefault("limits.event_window", time.Minute)
	viper.SetDefault("limits.chat_max", 10)
	viper.SetDefault("limits.chat_window", time.Minute)
	viper.SetDefault("limits.chat_cooldown", time.Second)
	viper.SetDefault("limits.typing_expiry", 3*time.Second)
	viper.SetDefault("limits.max_message_size", 500)
	viper.SetDefault("history.default_limit", 50)
	viper.SetDefault("history.max_limit", 200)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("STREAMHIVE")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Debug("config", "cfg", cfg)
	return &cfg, nil
}
