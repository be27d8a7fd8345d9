// Package config handles loading and managing borderstat configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"

	"github.com/wesm/borderstat/internal/fileutil"
	"github.com/wesm/borderstat/internal/source"
	"github.com/wesm/borderstat/internal/table"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// DataConfig says where the CSV files live and how they form a tree.
type DataConfig struct {
	Source       string `toml:"source"`        // base URL or directory
	Summary      string `toml:"summary"`       // summary file name
	GroupKey     string `toml:"group_key"`     // column grouping records
	ChildPattern string `toml:"child_pattern"` // child file name, {key} is replaced
	Mode         string `toml:"mode"`          // "lazy" or "eager"
}

// FetchConfig holds network settings for remote sources.
type FetchConfig struct {
	Timeout      string  `toml:"timeout"`        // duration, e.g. "10s"
	RateLimitQPS float64 `toml:"rate_limit_qps"` // requests per second, 0 = unlimited
	UserAgent    string  `toml:"user_agent"`
	Jobs         int     `toml:"jobs"` // parallel fetches when loading everything
}

// ColumnConfig describes one displayed column.
type ColumnConfig struct {
	ID        string `toml:"id"`
	Label     string `toml:"label"`
	Aggregate string `toml:"aggregate"` // sum, count, first or none
	DescFirst bool   `toml:"desc_first"`
	Unit      string `toml:"unit"`
	Hidden    bool   `toml:"hidden"`
	Format    string `toml:"format"` // number, videos, text
}

// SortConfig is one key of the initial sort order.
type SortConfig struct {
	Column string `toml:"column"`
	Desc   bool   `toml:"desc"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort         int      `toml:"api_port"`
	BindAddr        string   `toml:"bind_addr"`
	APIKey          string   `toml:"api_key"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	AllowInsecure   bool     `toml:"allow_insecure"` // permit a non-loopback bind without api_key
	RefreshSchedule string   `toml:"refresh_schedule"` // cron expression, empty = never
}

// IsLoopback reports whether BindAddr only accepts local connections.
func (s ServerConfig) IsLoopback() bool {
	switch s.BindAddr {
	case "", "localhost":
		return true
	}
	ip := net.ParseIP(s.BindAddr)
	return ip != nil && ip.IsLoopback()
}

// ValidateSecure refuses to expose the API beyond loopback without an API
// key unless allow_insecure is set.
func (s ServerConfig) ValidateSecure() error {
	if s.IsLoopback() || s.APIKey != "" || s.AllowInsecure {
		return nil
	}
	return fmt.Errorf("server.bind_addr %q is not loopback: set server.api_key or server.allow_insecure", s.BindAddr)
}

// Config represents the borderstat configuration.
type Config struct {
	Data    DataConfig     `toml:"data"`
	Fetch   FetchConfig    `toml:"fetch"`
	Columns []ColumnConfig `toml:"columns"`
	Sort    []SortConfig   `toml:"sort"`
	Server  ServerConfig   `toml:"server"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// DefaultHome returns the default borderstat home directory.
// Respects the BORDERSTAT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("BORDERSTAT_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".borderstat"
	}
	return filepath.Join(home, ".borderstat")
}

// DefaultColumns reproduces the border table: a hidden country code, the
// country name, a part count, the summed border length, holes and video
// links.
func DefaultColumns() []ColumnConfig {
	return []ColumnConfig{
		{ID: "iso", Hidden: true},
		{ID: "name", Label: "Country", Aggregate: "first"},
		{ID: "parts", Label: "Parts", Aggregate: "count"},
		{ID: "perimeter", Label: "Border length", Aggregate: "sum", Unit: "km"},
		{ID: "area", Label: "Area", Aggregate: "sum", Unit: "km²", DescFirst: true, Hidden: true},
		{ID: "holes", Label: "Holes", Aggregate: "first"},
		{ID: "videos", Label: "Videos", Aggregate: "first", Format: "videos"},
	}
}

// DefaultSort is the initial sort order of the border table.
func DefaultSort() []SortConfig {
	return []SortConfig{
		{Column: "iso"},
		{Column: "perimeter", Desc: true},
		{Column: "holes", Desc: true},
		{Column: "parts", Desc: true},
		{Column: "videos", Desc: true},
		{Column: "name"},
	}
}

func defaults(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			Source:       ".",
			Summary:      "data.csv",
			GroupKey:     "iso",
			ChildPattern: source.KeyPlaceholder + ".csv",
			Mode:         "lazy",
		},
		Fetch: FetchConfig{
			Timeout:      "10s",
			RateLimitQPS: 5,
			UserAgent:    "borderstat",
			Jobs:         4,
		},
		Server: ServerConfig{
			APIPort:  8080,
			BindAddr: "127.0.0.1",
		},
	}
}

// Load reads the configuration from path. An empty path means config.toml
// in the home directory; homeDir overrides DefaultHome when set. A missing
// file yields the defaults.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	} else {
		homeDir = expandPath(homeDir)
	}
	explicit := path != ""
	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}
	path = expandPath(path)

	cfg := defaults(homeDir)
	cfg.configPath = path

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		cfg.applyDefaultLayout()
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	cfg.applyDefaultLayout()

	if !source.IsRemote(cfg.Data.Source) {
		cfg.Data.Source = expandPath(cfg.Data.Source)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaultLayout fills in the border table layout when the file
// declares no columns or sort keys.
func (c *Config) applyDefaultLayout() {
	if len(c.Columns) == 0 {
		c.Columns = DefaultColumns()
	}
	if len(c.Sort) == 0 {
		c.Sort = DefaultSort()
	}
}

// ConfigFilePath returns the path the configuration was loaded from.
func (c *Config) ConfigFilePath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return filepath.Join(c.HomeDir, "config.toml")
}

// EnsureHomeDir creates the home directory if needed.
func (c *Config) EnsureHomeDir() error {
	return fileutil.MkdirPrivate(c.HomeDir)
}

// LogPath returns the file the TUI logs to.
func (c *Config) LogPath() string {
	return filepath.Join(c.HomeDir, "borderstat.log")
}

// Validate checks the values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	if c.Data.GroupKey == "" {
		return errors.New("data.group_key must be set")
	}
	if !strings.Contains(c.Data.ChildPattern, source.KeyPlaceholder) {
		return fmt.Errorf("data.child_pattern %q must contain %s", c.Data.ChildPattern, source.KeyPlaceholder)
	}
	if _, err := table.ParseMode(c.Data.Mode); err != nil {
		return fmt.Errorf("data.mode: %w", err)
	}
	if _, err := c.FetchTimeout(); err != nil {
		return err
	}
	if c.Fetch.RateLimitQPS < 0 {
		return errors.New("fetch.rate_limit_qps must not be negative")
	}
	if _, err := c.TableColumns(); err != nil {
		return err
	}
	if _, err := c.SortOrder(); err != nil {
		return err
	}
	if c.Server.APIPort < 0 || c.Server.APIPort > 65535 {
		return fmt.Errorf("server.api_port %d out of range", c.Server.APIPort)
	}
	if c.Server.RefreshSchedule != "" {
		if _, err := cronParser.Parse(c.Server.RefreshSchedule); err != nil {
			return fmt.Errorf("server.refresh_schedule: %w", err)
		}
	}
	return nil
}

// FetchTimeout parses fetch.timeout.
func (c *Config) FetchTimeout() (time.Duration, error) {
	if c.Fetch.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil {
		return 0, fmt.Errorf("fetch.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("fetch.timeout must not be negative")
	}
	return d, nil
}

// TableColumns converts the column section to table descriptors. An
// unknown aggregate or format name is a ConfigurationError.
func (c *Config) TableColumns() ([]table.Column, error) {
	cols := make([]table.Column, 0, len(c.Columns))
	for _, cc := range c.Columns {
		if cc.ID == "" {
			return nil, &table.ConfigurationError{Msg: "column without id"}
		}
		agg, err := table.ParseAggregator(cc.Aggregate)
		if err != nil {
			return nil, &table.ConfigurationError{Column: cc.ID, Msg: fmt.Sprintf("unknown aggregate %q", cc.Aggregate)}
		}
		format, err := table.ParseFormat(cc.Format)
		if err != nil {
			return nil, &table.ConfigurationError{Column: cc.ID, Msg: fmt.Sprintf("unknown format %q", cc.Format)}
		}
		cols = append(cols, table.Column{
			ID:         cc.ID,
			Label:      cc.Label,
			Aggregator: agg,
			DescFirst:  cc.DescFirst,
			Unit:       cc.Unit,
			Hidden:     cc.Hidden,
			Format:     format,
		})
	}
	return cols, nil
}

// SortOrder converts the sort section to a table sort order.
func (c *Config) SortOrder() (table.SortOrder, error) {
	keys := make([]table.SortKey, len(c.Sort))
	for i, s := range c.Sort {
		keys[i] = table.SortKey{Column: s.Column, Dir: table.Asc}
		if s.Desc {
			keys[i].Dir = table.Desc
		}
	}
	return table.NewSortOrder(keys...)
}

// SourceConfig returns the fetcher configuration.
func (c *Config) SourceConfig() (source.Config, error) {
	timeout, err := c.FetchTimeout()
	if err != nil {
		return source.Config{}, err
	}
	return source.Config{
		Location:     c.Data.Source,
		Summary:      c.Data.Summary,
		ChildPattern: c.Data.ChildPattern,
		Timeout:      timeout,
		RateLimitQPS: c.Fetch.RateLimitQPS,
		UserAgent:    c.Fetch.UserAgent,
	}, nil
}

// TableOptions returns the engine options for this configuration.
func (c *Config) TableOptions() (table.Options, error) {
	cols, err := c.TableColumns()
	if err != nil {
		return table.Options{}, err
	}
	order, err := c.SortOrder()
	if err != nil {
		return table.Options{}, err
	}
	mode, err := table.ParseMode(c.Data.Mode)
	if err != nil {
		return table.Options{}, err
	}
	return table.Options{
		KeyColumn: c.Data.GroupKey,
		Columns:   cols,
		Order:     order,
		Mode:      mode,
	}, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	if len(path) > 1 && path[1] != '/' && path[1] != filepath.Separator {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
