package schema

import (
	"fmt"
	"strings"
)

// ConfigurationError describes one problem with the declared schema. These
// are detected before any cluster contact.
type ConfigurationError struct {
	Source  string
	Table   string
	Family  string
	Field   string
	Message string
}

func (e ConfigurationError) Error() string {
	var location []string
	if e.Source != "" {
		location = append(location, e.Source)
	}
	if e.Table != "" {
		location = append(location, "table "+e.Table)
	}
	if e.Family != "" {
		location = append(location, "family "+e.Family)
	}
	if e.Field != "" {
		location = append(location, e.Field)
	}
	if len(location) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", strings.Join(location, ", "), e.Message)
}

// ConfigurationErrors aggregates every problem found in one pass.
type ConfigurationErrors []ConfigurationError

func (errs ConfigurationErrors) Error() string {
	switch len(errs) {
	case 0:
		return "no configuration errors"
	case 1:
		return errs[0].Error()
	}
	lines := make([]string, 0, len(errs)+1)
	lines = append(lines, fmt.Sprintf("%d configuration errors:", len(errs)))
	for _, err := range errs {
		lines = append(lines, "  - "+err.Error())
	}
	return strings.Join(lines, "\n")
}

// Err returns nil when errs is empty so callers can return it directly.
func (errs ConfigurationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
