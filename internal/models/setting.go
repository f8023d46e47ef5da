package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Setting stores a runtime tunable as a key/value entry.
type Setting struct {
	Key       string       `gorm:"type:varchar(255);primaryKey"`                      // Configuration key.
	Value     SettingValue `gorm:"column:value"`                                      // JSON-encoded value.
	UpdatedAt time.Time    `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}

// SettingValue is raw JSON kept as jsonb on Postgres and as text on SQLite.
// SQLite gives jsonb columns numeric affinity, so scalar values may come back as numbers.
type SettingValue json.RawMessage

// GormDBDataType picks the column type per dialect.
func (SettingValue) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

// Value writes the raw JSON text.
func (v SettingValue) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return string(v), nil
}

// Scan reads JSON text, tolerating numeric storage classes.
func (v *SettingValue) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*v = nil
	case []byte:
		*v = append(SettingValue(nil), value...)
	case string:
		*v = SettingValue(value)
	case int64:
		*v = SettingValue(strconv.FormatInt(value, 10))
	case float64:
		*v = SettingValue(strconv.FormatFloat(value, 'f', -1, 64))
	case bool:
		*v = SettingValue(strconv.FormatBool(value))
	default:
		return fmt.Errorf("models: unsupported setting value type %T", src)
	}
	return nil
}
