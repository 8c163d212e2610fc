package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	sharederrors "promowatch/internal/shared/errors"
)

func TestParseChannelList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"promos", []string{"@promos"}},
		{"@promos, food_msk ,, @spb_eats", []string{"@promos", "@food_msk", "@spb_eats"}},
	}
	for _, tt := range tests {
		if got := ParseChannelList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseChannelList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseAppEnv(t *testing.T) {
	if env, err := ParseAppEnv("Production"); err != nil || env != AppEnvProduction {
		t.Errorf("ParseAppEnv(Production) = %v, %v", env, err)
	}
	if _, err := ParseAppEnv("staging"); err == nil {
		t.Error("ParseAppEnv(staging) did not fail")
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("MASTER_SECRET", "hunter2")
	t.Setenv("IDENTITY", "+79990000000")
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_CHANNELS", "promos, @food_msk")
	t.Setenv("KEYWORDS", "скидка, sale")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !reflect.DeepEqual(cfg.TargetChannels, []string{"@promos", "@food_msk"}) {
		t.Errorf("channels = %v", cfg.TargetChannels)
	}
	if !reflect.DeepEqual(cfg.Keywords, []string{"скидка", "sale"}) {
		t.Errorf("keywords = %v", cfg.Keywords)
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("http_port = %q", cfg.HTTPPort)
	}
	if cfg.PollInterval != 300 || cfg.MessageLimit != 10 {
		t.Errorf("defaults not applied: poll=%d limit=%d", cfg.PollInterval, cfg.MessageLimit)
	}
	if cfg.AppEnv != AppEnvProduction {
		t.Errorf("app_env = %q, want production default", cfg.AppEnv)
	}
}

func TestLoadDefaultKeywords(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Keywords) == 0 {
		t.Error("default keyword list is empty")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MASTER_SECRET", "")

	if _, err := Load(); !errors.Is(err, sharederrors.ErrMissingMasterSecret) {
		t.Errorf("Load() error = %v, want ErrMissingMasterSecret", err)
	}
}

func TestLoadDelayValidation(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MIN_DELAY", "5.0")
	t.Setenv("MAX_DELAY", "2.0")

	if _, err := Load(); err == nil {
		t.Error("Load() accepted min_delay above max_delay")
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	setRequiredEnv(t)

	yaml := `target_channels:
  - promos
  - "@food_msk"
message_limit: 25
`
	if err := os.WriteFile(filepath.Join(".", "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.TargetChannels, []string{"@promos", "@food_msk"}) {
		t.Errorf("channels = %v", cfg.TargetChannels)
	}
	if cfg.MessageLimit != 25 {
		t.Errorf("message_limit = %d, want 25", cfg.MessageLimit)
	}
}
