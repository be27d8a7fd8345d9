package table

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNode is returned for a node ID not present in the tree.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownColumn is returned for a column ID not present in the schema.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrNotGroup is returned when a leaf is toggled or loaded.
	ErrNotGroup = errors.New("node is not a group")
)

// ParseError describes one malformed CSV row or field. Parse errors are
// diagnostics: the row is still kept with the bad field recovered.
type ParseError struct {
	Line   int
	Column string // empty for row-level problems
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d: column %s: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Diagnostics collects the non-fatal problems found while parsing.
type Diagnostics []*ParseError

// Err joins the diagnostics into a single error, or nil if there are none.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	errs := make([]error, len(d))
	for i, e := range d {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// ConfigurationError reports a setup bug such as an aggregator requested for
// a column that does not exist.
type ConfigurationError struct {
	Column string
	Msg    string
}

func (e *ConfigurationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("configuration error: column %q: %s", e.Column, e.Msg)
	}
	return "configuration error: " + e.Msg
}

// LoadError records a failed child fetch for a group.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
