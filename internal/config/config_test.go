package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"options-lab/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad_CreatesTemplate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "options-lab")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Created {
		t.Error("Created = false on first run")
	}
	for _, name := range []string{FileName, "templates.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	again, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if again.Created {
		t.Error("template rewritten on second run")
	}
	again.Created = false
	cfg.Created = false
	if *again != *cfg {
		t.Errorf("template values differ from defaults:\n%+v\n%+v", again, cfg)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Pricing.RiskFreeRate != 0.05 || cfg.Pricing.DefaultVolatility != 0.25 {
		t.Errorf("pricing = %+v", cfg.Pricing)
	}
	if cfg.Analysis.PayoffRange != 0.30 || cfg.Analysis.SearchRange != 0.5 || cfg.Analysis.StrikeWidth != 5 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.ReadTimeout != 10*time.Second || cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_FileValues(t *testing.T) {
	dir := writeConfig(t, `
[pricing]
risk_free_rate = 0.03

[analysis]
strike_width = 2.5
days_to_expiry = 45
far_days = 90

[server]
addr = "127.0.0.1:9000"
read_timeout = "30s"

[logging]
level = "debug"
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Created {
		t.Error("Created = true with an existing file")
	}
	if cfg.Pricing.RiskFreeRate != 0.03 || cfg.Analysis.StrikeWidth != 2.5 || cfg.Analysis.DaysToExpiry != 45 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	// unset keys keep their defaults
	if cfg.Pricing.DefaultVolatility != 0.25 || cfg.Server.WriteTimeout != 10*time.Second {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.LogConfig().Level != "debug" {
		t.Errorf("LogConfig().Level = %q", cfg.LogConfig().Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, "")
	t.Setenv("OPTLAB_RISK_FREE_RATE", "0.07")
	t.Setenv("OPTLAB_SERVER_ADDR", ":9999")
	t.Setenv("OPTLAB_LOG_LEVEL", "warn")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pricing.RiskFreeRate != 0.07 || cfg.Server.Addr != ":9999" || cfg.Logging.Level != "warn" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}

	t.Setenv("OPTLAB_RISK_FREE_RATE", "five percent")
	if _, err := Load(dir); !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("Load() error = %v, want ErrConfigInvalid", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"far before near", "[analysis]\ndays_to_expiry = 30\nfar_days = 10\n", "analysis.far_days"},
		{"negative width", "[analysis]\nstrike_width = -5\n", "analysis.strike_width"},
		{"wide range", "[analysis]\nsearch_range = 1.5\n", "analysis.search_range"},
		{"bad level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"zero timeout", "[server]\nrequest_timeout = \"0s\"\n", "server.request_timeout"},
		{"malformed", "[pricing\nrisk_free_rate = ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, errors.ErrConfigInvalid) {
				t.Fatalf("Load() error = %v, want ErrConfigInvalid", err)
			}
			if tt.field != "" && !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestLogConfig(t *testing.T) {
	cfg := Default()
	cfg.Dir = "/tmp/optlab"
	lc := cfg.LogConfig()
	if lc.FilePath != filepath.Join("/tmp/optlab", "logs", "optlab.log") || lc.MaxSize != 50 || !lc.Console {
		t.Errorf("LogConfig() = %+v", lc)
	}

	cfg.Logging.FilePath = "/var/log/optlab.log"
	if got := cfg.LogConfig().FilePath; got != "/var/log/optlab.log" {
		t.Errorf("explicit file path ignored: %s", got)
	}
	if got := cfg.Path(); got != filepath.Join("/tmp/optlab", FileName) {
		t.Errorf("Path() = %s", got)
	}
}
