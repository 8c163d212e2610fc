package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/lo"
	"github.com/samber/oops"

	sharederrors "promowatch/internal/shared/errors"
)

// AppEnv represents the application environment
type AppEnv string

const (
	AppEnvLocal       AppEnv = "local"
	AppEnvProduction  AppEnv = "production"
	AppEnvDevelopment AppEnv = "development"
	AppEnvTesting     AppEnv = "testing"
)

// ParseAppEnv parses a string into an AppEnv, case-insensitively.
func ParseAppEnv(s string) (AppEnv, error) {
	switch AppEnv(strings.ToLower(s)) {
	case AppEnvLocal, AppEnvProduction, AppEnvDevelopment, AppEnvTesting:
		return AppEnv(strings.ToLower(s)), nil
	}
	return "", oops.Errorf("unknown app env: %s", s)
}

type Config struct {
	TelegramBotToken string   `koanf:"telegram_bot_token"`
	Identity         string   `koanf:"identity"`
	MasterSecret     string   `koanf:"master_secret"`
	TargetChannels   []string `koanf:"target_channels"`
	Keywords         []string `koanf:"keywords"`
	OutputChannel    string   `koanf:"output_channel"`
	SecureDir        string   `koanf:"secure_dir"`
	StoragePath      string   `koanf:"storage_path"`
	ProcessedFile    string   `koanf:"processed_file"`
	HTTPPort         string   `koanf:"http_port"`
	PollInterval     int      `koanf:"poll_interval"`
	MessageLimit     int      `koanf:"message_limit"`
	MinDelay         float64  `koanf:"min_delay"`
	MaxDelay         float64  `koanf:"max_delay"`
	AppEnv           AppEnv   `koanf:"app_env"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load config file from various formats
	configFiles := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"config.toml",
	}

	configFile, found := lo.Find(configFiles, func(file string) bool {
		_, err := os.Stat(file)
		return err == nil
	})

	if found {
		var parser koanf.Parser
		ext := filepath.Ext(configFile)

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, oops.Errorf("unsupported config file extension: %s", ext)
		}

		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, oops.With("config_file", configFile).Wrap(err)
		}
	}

	// Environment variables override config file values
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, oops.With("context", "loading environment variables").Wrap(err)
	}

	// Set defaults
	if !k.Exists("secure_dir") {
		k.Set("secure_dir", ".secure")
	}
	if !k.Exists("storage_path") {
		k.Set("storage_path", "./data")
	}
	if !k.Exists("processed_file") {
		k.Set("processed_file", "./data/processed.json")
	}
	if !k.Exists("http_port") {
		k.Set("http_port", "8080")
	}
	if !k.Exists("poll_interval") {
		k.Set("poll_interval", 300)
	}
	if !k.Exists("message_limit") {
		k.Set("message_limit", 10)
	}
	if !k.Exists("min_delay") {
		k.Set("min_delay", 1.0)
	}
	if !k.Exists("max_delay") {
		k.Set("max_delay", 3.0)
	}
	if !k.Exists("keywords") {
		k.Set("keywords", []string{"скидка", "бесплатно", "открытие", "завтрак", "акция", "sale"})
	}
	if !k.Exists("app_env") {
		k.Set("app_env", "production")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("context", "unmarshaling config").Wrap(err)
	}

	// Parse TargetChannels from a comma-separated string if it came from env
	if channels := k.Get("target_channels"); channels != nil {
		switch v := channels.(type) {
		case string:
			cfg.TargetChannels = ParseChannelList(v)
		case []interface{}:
			cfg.TargetChannels = lo.FilterMap(v, func(item interface{}, _ int) (string, bool) {
				s, ok := item.(string)
				s = strings.TrimSpace(s)
				if !ok || s == "" {
					return "", false
				}
				if !strings.HasPrefix(s, "@") {
					s = "@" + s
				}
				return s, true
			})
		}
	}

	// Keywords may likewise arrive as a comma-separated env string
	if keywords := k.Get("keywords"); keywords != nil {
		if s, ok := keywords.(string); ok {
			cfg.Keywords = lo.FilterMap(strings.Split(s, ","), func(part string, _ int) (string, bool) {
				part = strings.TrimSpace(part)
				return part, part != ""
			})
		}
	}

	if appEnvStr := k.String("app_env"); appEnvStr != "" {
		if env, err := ParseAppEnv(appEnvStr); err == nil {
			cfg.AppEnv = env
		} else {
			cfg.AppEnv = AppEnvProduction
		}
	} else {
		cfg.AppEnv = AppEnvProduction
	}

	// Validate required fields
	if cfg.TelegramBotToken == "" {
		return nil, sharederrors.ErrMissingBotToken
	}
	if cfg.MasterSecret == "" {
		return nil, sharederrors.ErrMissingMasterSecret
	}
	if cfg.Identity == "" {
		return nil, sharederrors.ErrMissingIdentity
	}
	if cfg.MinDelay > cfg.MaxDelay {
		return nil, oops.With("min_delay", cfg.MinDelay, "max_delay", cfg.MaxDelay).
			Errorf("min_delay must not exceed max_delay")
	}

	return &cfg, nil
}

// ParseChannelList parses a comma-separated channel list into a slice
// of @-prefixed channel usernames.
func ParseChannelList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	return lo.FilterMap(parts, func(part string, _ int) (string, bool) {
		part = strings.TrimSpace(part)
		if part == "" {
			return "", false
		}
		if !strings.HasPrefix(part, "@") {
			part = fmt.Sprintf("@%s", part)
		}
		return part, true
	})
}
