package config

import (
	"fmt"
	"strings"
	"time"
)

// durationField parses a Go duration string for field. Blank and zero values
// fall back to def; negative values are an error.
func durationField(field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration (e.g. \"250ms\", \"12s\")", field, raw)
	case d < 0:
		return 0, fmt.Errorf("%s: must not be negative", field)
	case d == 0:
		return def, nil
	}
	return d, nil
}
