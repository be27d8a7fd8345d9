package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wesm/borderstat/internal/table"
	"github.com/wesm/borderstat/internal/testutil"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	return testutil.WriteFile(t, dir, "config.toml", []byte(content))
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("BORDERSTAT_HOME", tmpDir)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HomeDir != tmpDir {
		t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, tmpDir)
	}
	if cfg.Server.APIPort != 8080 || cfg.Server.BindAddr != "127.0.0.1" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Data.GroupKey != "iso" || cfg.Data.Summary != "data.csv" || cfg.Data.ChildPattern != "{key}.csv" {
		t.Errorf("Data = %+v", cfg.Data)
	}

	order, err := cfg.SortOrder()
	testutil.MustNoErr(t, err, "SortOrder")
	testutil.AssertDiff(t, table.SortOrder{
		{Column: "iso", Dir: table.Asc},
		{Column: "perimeter", Dir: table.Desc},
		{Column: "holes", Dir: table.Desc},
		{Column: "parts", Dir: table.Desc},
		{Column: "videos", Dir: table.Desc},
		{Column: "name", Dir: table.Asc},
	}, order)

	cols, err := cfg.TableColumns()
	testutil.MustNoErr(t, err, "TableColumns")
	byID := map[string]table.Column{}
	for _, c := range cols {
		byID[c.ID] = c
	}
	if byID["parts"].Aggregator != table.AggCount || byID["perimeter"].Aggregator != table.AggSum ||
		byID["name"].Aggregator != table.AggFirst {
		t.Errorf("aggregators = %+v", byID)
	}
	if !byID["iso"].Hidden || byID["videos"].Format != table.FormatVideos {
		t.Errorf("presentation settings = %+v", byID)
	}
}

func TestLoad_HomeFlagOverridesEnv(t *testing.T) {
	t.Setenv("BORDERSTAT_HOME", t.TempDir())
	home := t.TempDir()
	writeConfig(t, home, "[server]\napi_port = 9191\n")

	cfg, err := Load("", home)
	testutil.MustNoErr(t, err, "Load")
	if cfg.Server.APIPort != 9191 {
		t.Errorf("APIPort = %d, want 9191 from --home config", cfg.Server.APIPort)
	}
	if cfg.ConfigFilePath() != filepath.Join(home, "config.toml") {
		t.Errorf("ConfigFilePath = %q", cfg.ConfigFilePath())
	}
}

func TestLoad_File(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("BORDERSTAT_HOME", tmpDir)

	path := writeConfig(t, tmpDir, `
[data]
source = "https://example.com/borders"
group_key = "code"
child_pattern = "parts/{key}.csv"
mode = "eager"

[fetch]
timeout = "3s"
rate_limit_qps = 2.5

[[columns]]
id = "name"
aggregate = "first"

[[columns]]
id = "length"
label = "Length"
aggregate = "sum"
unit = "mi"
desc_first = true

[[sort]]
column = "length"
desc = true

[server]
api_key = "secret"
refresh_schedule = "0 * * * *"
`)
	cfg, err := Load(path, "")
	testutil.MustNoErr(t, err, "Load")

	if cfg.Data.Source != "https://example.com/borders" || cfg.Data.GroupKey != "code" {
		t.Errorf("Data = %+v", cfg.Data)
	}
	timeout, err := cfg.FetchTimeout()
	testutil.MustNoErr(t, err, "FetchTimeout")
	if timeout != 3*time.Second {
		t.Errorf("timeout = %v", timeout)
	}
	if len(cfg.Columns) != 2 || cfg.Columns[1].Unit != "mi" {
		t.Errorf("Columns = %+v", cfg.Columns)
	}

	opts, err := cfg.TableOptions()
	testutil.MustNoErr(t, err, "TableOptions")
	if opts.Mode != table.Eager || opts.KeyColumn != "code" {
		t.Errorf("options = %+v", opts)
	}
	testutil.AssertDiff(t, table.SortOrder{{Column: "length", Dir: table.Desc}}, opts.Order)

	src, err := cfg.SourceConfig()
	testutil.MustNoErr(t, err, "SourceConfig")
	if src.RateLimitQPS != 2.5 || src.ChildPattern != "parts/{key}.csv" {
		t.Errorf("source config = %+v", src)
	}
}

func TestLoad_UnknownAggregate(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfig(t, tmpDir, `
[[columns]]
id = "perimeter"
aggregate = "median"
`)
	_, err := Load(path, tmpDir)
	var ce *table.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigurationError", err)
	}
	if ce.Column != "perimeter" || !strings.Contains(ce.Msg, "median") {
		t.Errorf("ConfigurationError = %+v", ce)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad timeout", "[fetch]\ntimeout = \"soon\"\n", "fetch.timeout"},
		{"pattern without key", "[data]\nchild_pattern = \"all.csv\"\n", "child_pattern"},
		{"bad mode", "[data]\nmode = \"sometimes\"\n", "data.mode"},
		{"duplicate sort", "[[sort]]\ncolumn = \"a\"\n[[sort]]\ncolumn = \"a\"\n", "sorted twice"},
		{"unknown key", "[data]\nsauce = \"x\"\n", "unknown config keys"},
		{"bad port", "[server]\napi_port = 70000\n", "out of range"},
		{"negative rate", "[fetch]\nrate_limit_qps = -1\n", "rate_limit_qps"},
		{"bad toml", "[data\n", "decode config"},
		{"bad schedule", "[server]\nrefresh_schedule = \"hourly-ish\"\n", "refresh_schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			path := writeConfig(t, tmpDir, tt.content)
			_, err := Load(path, tmpDir)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), t.TempDir())
	if err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestLoad_ExpandsTildeInSource(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no user home directory")
	}
	tmpDir := t.TempDir()
	path := writeConfig(t, tmpDir, "[data]\nsource = \"~/borders\"\n")

	cfg, err := Load(path, tmpDir)
	testutil.MustNoErr(t, err, "Load")
	if cfg.Data.Source != filepath.Join(home, "borders") {
		t.Errorf("Source = %q", cfg.Data.Source)
	}
}

func TestEnsureHomeDir(t *testing.T) {
	home := filepath.Join(t.TempDir(), "nested", "home")
	cfg, err := Load("", home)
	testutil.MustNoErr(t, err, "Load")
	testutil.MustNoErr(t, cfg.EnsureHomeDir(), "EnsureHomeDir")
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		t.Errorf("home dir not created: %v", err)
	}
	if filepath.Dir(cfg.LogPath()) != home {
		t.Errorf("LogPath = %q", cfg.LogPath())
	}
}

func TestServerConfig_ValidateSecure(t *testing.T) {
	tests := []struct {
		name      string
		cfg       ServerConfig
		wantError bool
	}{
		{"loopback no key", ServerConfig{BindAddr: "127.0.0.1"}, false},
		{"loopback 127.0.0.2 no key", ServerConfig{BindAddr: "127.0.0.2"}, false},
		{"ipv6 loopback no key", ServerConfig{BindAddr: "::1"}, false},
		{"localhost no key", ServerConfig{BindAddr: "localhost"}, false},
		{"empty addr no key", ServerConfig{}, false},
		{"non-loopback with key", ServerConfig{BindAddr: "0.0.0.0", APIKey: "secret"}, false},
		{"non-loopback no key", ServerConfig{BindAddr: "0.0.0.0"}, true},
		{"non-loopback ipv6 no key", ServerConfig{BindAddr: "::"}, true},
		{"hostname no key", ServerConfig{BindAddr: "borders.example.com"}, true},
		{"non-loopback insecure override", ServerConfig{BindAddr: "0.0.0.0", AllowInsecure: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateSecure()
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateSecure() error = %v, wantError = %v", err, tt.wantError)
			}
		})
	}
}
