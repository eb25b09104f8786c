package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration wraps time.Duration with ISO-8601 duration text encoding, so
// token_ttl can be written "PT3H" or "P1W" in TOML the same way the admin
// surface's wire documentation specifies it.
type Duration time.Duration

// ParseDuration parses a restricted subset of ISO-8601 durations: an
// optional P<weeks>W, or P<date>T<time> where date and time each carry
// one or more <number><unit> pairs (Y/M/D before T, H/M/S after).
func ParseDuration(s string) (Duration, error) {
	if s == "" || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q: must start with P", s)
	}
	rest := s[1:]

	if strings.HasSuffix(rest, "W") {
		n, err := strconv.ParseFloat(strings.TrimSuffix(rest, "W"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		return Duration(time.Duration(n * float64(7*24*time.Hour))), nil
	}

	datePart, timePart, hasTime := strings.Cut(rest, "T")

	var total time.Duration
	var err error
	total, err = accumulate(total, datePart, map[byte]time.Duration{
		'Y': 365 * 24 * time.Hour,
		'M': 30 * 24 * time.Hour,
		'D': 24 * time.Hour,
	})
	if err != nil {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
	}

	if hasTime {
		total, err = accumulate(total, timePart, map[byte]time.Duration{
			'H': time.Hour,
			'M': time.Minute,
			'S': time.Second,
		})
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
	}

	return Duration(total), nil
}

func accumulate(total time.Duration, part string, units map[byte]time.Duration) (time.Duration, error) {
	for len(part) > 0 {
		i := 0
		for i < len(part) && (part[i] == '.' || part[i] == '-' || (part[i] >= '0' && part[i] <= '9')) {
			i++
		}
		if i == 0 || i >= len(part) {
			return total, fmt.Errorf("malformed component %q", part)
		}
		n, err := strconv.ParseFloat(part[:i], 64)
		if err != nil {
			return total, err
		}
		unit, ok := units[part[i]]
		if !ok {
			return total, fmt.Errorf("unknown unit %q", string(part[i]))
		}
		total += time.Duration(n * float64(unit))
		part = part[i+1:]
	}
	return total, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so go-toml decodes
// token_ttl = "PT3H" directly into a Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler, round-tripping back to a
// plain Go duration string rather than reconstructing ISO-8601 text, since
// sentryd never re-serializes config back to TOML.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
