package domain

import (
	"strconv"
	"time"
)

// SettingType declares how a setting value is coerced on read.
type SettingType string

const (
	SettingString SettingType = "string"
	SettingNumber SettingType = "number"
)

// Valid reports whether t is a known setting type.
func (t SettingType) Valid() bool {
	return t == SettingString || t == SettingNumber
}

// Setting is a named configuration value editable at runtime, e.g. the
// fundraising goal shown on the donation page. Values are stored as strings
// and coerced per declared type on read.
type Setting struct {
	Key         string
	Value       string
	Type        SettingType
	Label       string
	Description string
	Category    string
	Public      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TypedValue returns the value coerced by the declared type. Number settings
// with an unparsable value fall back to the raw string rather than failing a
// read path.
func (s Setting) TypedValue() any {
	if s.Type == SettingNumber {
		if f, err := strconv.ParseFloat(s.Value, 64); err == nil {
			return f
		}
	}
	return s.Value
}
