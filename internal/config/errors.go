package config

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// LoadError reports a configuration file that could not be parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	var decodeErr *toml.DecodeError
	if errors.As(e.Err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, row, col, decodeErr)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Details returns the offending lines of a TOML syntax error with a marker
// under the failing position, or "" when err carries no position.
func Details(err error) string {
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr.String()
	}
	return ""
}
