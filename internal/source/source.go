// Package source retrieves the border CSV files: the summary CSV and one
// header-less child CSV per group key, from an HTTP(S) base URL or a local
// directory. All text is normalized to UTF-8.
package source

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wesm/borderstat/internal/table"
	"github.com/wesm/borderstat/internal/textutil"
)

// KeyPlaceholder is replaced by the group key in a child name pattern.
const KeyPlaceholder = "{key}"

// Config describes where the CSV files live.
type Config struct {
	// Location is an http(s) base URL or a directory path.
	Location     string
	Summary      string // summary file name, relative to Location
	ChildPattern string // child file name pattern containing {key}
	Timeout      time.Duration
	RateLimitQPS float64 // 0 disables rate limiting
	UserAgent    string
}

func (c Config) withDefaults() Config {
	if c.Summary == "" {
		c.Summary = "data.csv"
	}
	if c.ChildPattern == "" {
		c.ChildPattern = KeyPlaceholder + ".csv"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "borderstat"
	}
	return c
}

func (c Config) validate() error {
	if !strings.Contains(c.ChildPattern, KeyPlaceholder) {
		return fmt.Errorf("child pattern %q must contain %s", c.ChildPattern, KeyPlaceholder)
	}
	return nil
}

// IsRemote reports whether location is an HTTP(S) URL.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// New returns the fetcher matching cfg.Location.
func New(cfg Config) (table.Fetcher, error) {
	if IsRemote(cfg.Location) {
		return NewHTTP(cfg)
	}
	return NewDir(cfg)
}

// childName builds the child file name for key.
func childName(pattern, key string) string {
	return strings.ReplaceAll(pattern, KeyPlaceholder, key)
}

// utf8Body wraps a fetched body so its text is decoded to UTF-8 on read.
func utf8Body(rc io.ReadCloser) (io.ReadCloser, error) {
	defer rc.Close()
	r, _, err := textutil.NewUTF8Reader(rc)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(r), nil
}

// validKey rejects keys that would escape the data location.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid group key %q", key)
	}
	return nil
}
