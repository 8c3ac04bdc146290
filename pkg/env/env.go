// Package env reads the handful of plain environment switches that sit
// outside the structured config, such as LOG_FORMAT.
package env

import "os"

// Get returns the variable's value, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
