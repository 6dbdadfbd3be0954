// Package convert parses the heterogeneous value encodings found in
// scheduler job attributes and metrics-store samples. Every function
// returns nil for input it cannot understand; absence means "not
// measured" and is substituted downstream, never raised as an error.
package convert

import (
	"regexp"
	"strconv"
	"strings"
)

var memoryMultipliers = map[string]int64{
	"b":  1,
	"kb": 1 << 10,
	"mb": 1 << 20,
	"gb": 1 << 30,
	"tb": 1 << 40,
}

var memoryPattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([a-z]+)?$`)

func resolveMultiplier(unit string) (int64, bool) {
	if unit == "" {
		return memoryMultipliers["b"], true
	}
	m, ok := memoryMultipliers[strings.ToLower(unit)]
	return m, ok
}

// ParseMemoryBytes parses a memory specification such as "4gb" or "2048"
// into bytes. A value without a unit suffix is interpreted in defaultUnit
// (bytes when defaultUnit is empty). Fractional bytes are truncated.
func ParseMemoryBytes(raw string, defaultUnit string) *int64 {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return nil
	}

	match := memoryPattern.FindStringSubmatch(normalized)
	if match == nil {
		return nil
	}

	unit := match[2]
	if unit == "" {
		unit = defaultUnit
	}
	multiplier, ok := resolveMultiplier(unit)
	if !ok {
		return nil
	}

	base, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}

	bytes := int64(base * float64(multiplier))
	return &bytes
}

// ScaleToBytes converts an already-numeric sample value expressed in unit
// into bytes.
func ScaleToBytes(value float64, unit string) *int64 {
	multiplier, ok := resolveMultiplier(unit)
	if !ok {
		return nil
	}
	bytes := int64(value * float64(multiplier))
	return &bytes
}

// ParseHMS parses a strict "HH:MM:SS" duration into seconds. Any other
// shape yields nil.
func ParseHMS(raw string) *int64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ":")
	if len(parts) != 3 {
		return nil
	}

	var fields [3]int64
	for i, part := range parts {
		parsed, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil
		}
		fields[i] = parsed
	}

	seconds := fields[0]*3600 + fields[1]*60 + fields[2]
	return &seconds
}

// ToInt64 coerces a string to an integer, nil on failure.
func ToInt64(raw string) *int64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil
	}
	return &parsed
}
