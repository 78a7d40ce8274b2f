package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if val, ok := Lookup(key); ok {
		return val
	}
	return fallback
}

// Lookup reports whether key holds a non-blank value.
func Lookup(key string) (string, bool) {
	val := strings.TrimSpace(os.Getenv(key))
	return val, val != ""
}

// First returns the first non-blank value among keys.
func First(keys ...string) string {
	for _, key := range keys {
		if val, ok := Lookup(key); ok {
			return val
		}
	}
	return ""
}
