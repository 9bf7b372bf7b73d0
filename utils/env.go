// utils/env.go
package utils

import (
	"os"
	"strconv"
)

// EnvStr reads an environment variable with a default.
func EnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt reads an integer environment variable with a default; malformed
// values fall back to the default.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
