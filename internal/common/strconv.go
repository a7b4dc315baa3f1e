package common

import "strconv"

// AtoiDefault parses value as an int, returning def on blank or garbage
// input. Used for env and query values where a bad setting should fall
// back rather than fail.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
