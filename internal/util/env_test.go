package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"unset uses default", "", true, true},
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes mixed case", "Yes", false, true},
		{"on with spaces", " on ", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"off", "off", true, false},
		{"invalid uses default", "banana", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "HAMRAZ_TEST_BOOL"
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			if got := ParseBoolEnv(key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{"unset uses default", "", 7, 7},
		{"valid", "42", 7, 42},
		{"negative", "-3", 7, -3},
		{"with spaces", " 12 ", 7, 12},
		{"invalid uses default", "twelve", 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "HAMRAZ_TEST_INT"
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			if got := ParseIntEnv(key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetenvDefault(t *testing.T) {
	key := "HAMRAZ_TEST_STR"
	if got := GetenvDefault(key, "fallback"); got != "fallback" {
		t.Errorf("expected fallback for unset variable, got %q", got)
	}
	t.Setenv(key, "value")
	if got := GetenvDefault(key, "fallback"); got != "value" {
		t.Errorf("expected set value, got %q", got)
	}
}
