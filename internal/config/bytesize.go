package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ByteSize is an int64 byte count that also parses human-readable suffixes
// ("512MB", "2GiB") for cache-memory-style configuration fields.
//
// Adapted from the teacher's pkg/bytesize package, folded directly into
// config instead of kept as a standalone reusable library.
type ByteSize int64

const (
	byteUnit ByteSize = 1
	kb                = 1024 * byteUnit
	mb                = 1024 * kb
	gb                = 1024 * mb
)

var sizeUnits = map[string]ByteSize{
	"b": byteUnit, "byte": byteUnit, "bytes": byteUnit,
	"k": kb, "kb": kb, "kib": kb,
	"m": mb, "mb": mb, "mib": mb,
	"g": gb, "gb": gb, "gib": gb,
}

var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// ParseByteSize parses a human-readable byte size string.
func ParseByteSize(s string) (ByteSize, error) {
	if s == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("bytesize: invalid format %q", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", m[1], err)
	}
	unit := byteUnit
	if u := strings.ToLower(m[2]); u != "" {
		var ok bool
		unit, ok = sizeUnits[u]
		if !ok {
			return 0, fmt.Errorf("bytesize: unknown unit %q", u)
		}
	}
	return ByteSize(value * float64(unit)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for viper/YAML/TOML.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler, also accepting a raw number of
// bytes for compatibility with machine-generated config.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return b.UnmarshalText([]byte(s))
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 { return int64(b) }

func (b ByteSize) String() string {
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2fGB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2fMB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2fKB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%dB", int64(b))
	}
}
