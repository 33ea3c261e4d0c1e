package model

import "time"

// TenantSetting is one persisted override row. Values are stored as JSON so
// a single table serves string, int and bool keys.
type TenantSetting struct {
	TenantID string `json:"tenant_id"`
	Key      string `json:"key"`
	Value    any    `json:"value"`
}

// SettingsEvent records one successful key change, written in the same
// transaction as the setting upsert.
type SettingsEvent struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Key       string    `json:"key"`
	OldValue  any       `json:"old_value,omitempty"`
	NewValue  any       `json:"new_value"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SettingsMap is a resolved view: defaults merged with tenant overrides.
type SettingsMap map[string]any

// Int returns the value for key as an int, tolerating the float64 that
// JSON round-trips produce. ok is false when the key is absent or not
// numeric.
func (m SettingsMap) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Bool returns the value for key as a bool.
func (m SettingsMap) Bool(key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

// String returns the value for key as a string.
func (m SettingsMap) String(key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}
