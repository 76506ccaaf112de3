package util

import (
	"strconv"
	"strings"
)

// MaxBatchSize bounds list-rendering lookups so one request stays one round trip.
const MaxBatchSize = 100

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ParseTokenList splits a comma-separated list, trimming blanks and dropping
// duplicates while keeping the caller's order. At most MaxBatchSize items are kept.
func ParseTokenList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		result = append(result, p)
		if len(result) == MaxBatchSize {
			break
		}
	}
	return result
}
