// Package settings resolves per-tenant configuration. A closed schema of
// typed validators defines every known key, its default and its bounds;
// anything outside the schema is rejected at the write path so reads never
// see an unknown or out-of-range value.
package settings

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// Setting keys. The schema below is the single source of truth; adding a
// key means adding a validator here.
const (
	KeyBrandDisplayName       = "brand_display_name"
	KeyThemePrimaryColor      = "theme_primary_color"
	KeySLAResponseMinutes     = "sla_response_minutes"
	KeyDuplicateWindowMinutes = "duplicate_window_minutes"
	KeyEnableAdvancedParser   = "enable_advanced_parser"
)

const (
	maxBrandDisplayNameLen = 120

	minSLAMinutes = 5
	maxSLAMinutes = 1440

	minDuplicateWindowMinutes = 5
	maxDuplicateWindowMinutes = 10080
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// validator checks and canonicalizes one submitted value. It returns the
// canonical form (e.g. float64 coerced to int) or an error naming the key.
type validator func(value any) (any, error)

// schema enumerates every supported key with its default and validator.
var schema = map[string]struct {
	defaultValue any
	validate     validator
}{
	KeyBrandDisplayName: {
		defaultValue: "Rendetalje",
		validate: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, invalidKeyErr(KeyBrandDisplayName, "must be a string")
			}
			if s == "" {
				return nil, invalidKeyErr(KeyBrandDisplayName, "must not be empty")
			}
			if utf8.RuneCountInString(s) > maxBrandDisplayNameLen {
				return nil, invalidKeyErr(KeyBrandDisplayName, fmt.Sprintf("must be at most %d characters", maxBrandDisplayNameLen))
			}
			return s, nil
		},
	},
	KeyThemePrimaryColor: {
		defaultValue: "#1a7f5a",
		validate: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok || !hexColorRe.MatchString(s) {
				return nil, invalidKeyErr(KeyThemePrimaryColor, "must be a #RRGGBB hex color")
			}
			return s, nil
		},
	},
	KeySLAResponseMinutes: {
		defaultValue: 60,
		validate:     intRangeValidator(KeySLAResponseMinutes, minSLAMinutes, maxSLAMinutes),
	},
	KeyDuplicateWindowMinutes: {
		defaultValue: 60,
		validate:     intRangeValidator(KeyDuplicateWindowMinutes, minDuplicateWindowMinutes, maxDuplicateWindowMinutes),
	},
	KeyEnableAdvancedParser: {
		defaultValue: false,
		validate: func(v any) (any, error) {
			b, ok := v.(bool)
			if !ok {
				return nil, invalidKeyErr(KeyEnableAdvancedParser, "must be a boolean")
			}
			return b, nil
		},
	},
}

// intRangeValidator accepts int, int64 and float64 input (JSON decoding
// yields float64) and rejects fractional or out-of-range values.
func intRangeValidator(key string, min, max int) validator {
	return func(v any) (any, error) {
		var n int
		switch t := v.(type) {
		case int:
			n = t
		case int64:
			n = int(t)
		case float64:
			if t != float64(int(t)) {
				return nil, invalidKeyErr(key, "must be a whole number")
			}
			n = int(t)
		default:
			return nil, invalidKeyErr(key, "must be an integer")
		}
		if n < min || n > max {
			return nil, invalidKeyErr(key, fmt.Sprintf("must be between %d and %d", min, max))
		}
		return n, nil
	}
}

// ErrNoValidKeys is returned when an update names no schema key at all.
var ErrNoValidKeys = eris.New("settings: no_valid_keys")

func invalidKeyErr(key, reason string) error {
	return eris.Errorf("settings: invalid_%s: %s", key, reason)
}

// Defaults returns the schema defaults as a fresh map.
func Defaults() model.SettingsMap {
	m := make(model.SettingsMap, len(schema))
	for key, def := range schema {
		m[key] = def.defaultValue
	}
	return m
}

// KnownKey reports whether key is part of the schema.
func KnownKey(key string) bool {
	_, ok := schema[key]
	return ok
}

// ValidateChanges checks a proposed update against the schema. It is
// all-or-nothing: the first invalid value fails the whole batch, and a
// batch containing no known key fails with ErrNoValidKeys. On success the
// returned map holds canonicalized values for every submitted known key.
func ValidateChanges(changes map[string]any) (map[string]any, error) {
	valid := make(map[string]any, len(changes))
	for key, value := range changes {
		def, ok := schema[key]
		if !ok {
			continue
		}
		canonical, err := def.validate(value)
		if err != nil {
			return nil, err
		}
		valid[key] = canonical
	}
	if len(valid) == 0 {
		return nil, ErrNoValidKeys
	}
	return valid, nil
}
