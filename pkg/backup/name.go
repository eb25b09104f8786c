package backup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/sentryd/pkg/apierr"
)

const (
	minDescriptionLen = 1
	maxDescriptionLen = 256

	minTimestamp int64 = 1_000_000_000   // 10^9
	maxTimestamp int64 = 100_000_000_000 // 10^11, exclusive
)

// Name builds the Backup Name for description at createdAt: a ten-digit
// zero-padded Unix timestamp prefix followed by the percent-encoded
// description. Lexicographic comparison of names built this way equals
// chronological comparison of createdAt, up to one-second resolution
// (Invariant L1), since the timestamp prefix is ten digits wide for every
// timestamp below 10^10 and sorts before the description in every name.
// Timestamps from 10^10 up to the 10^11 limit get an eleven-digit prefix,
// which does not sort after a ten-digit one.
func Name(description string, createdAt time.Time) (string, error) {
	if len(description) < minDescriptionLen || len(description) > maxDescriptionLen {
		return "", apierr.New(apierr.CodeConfigError,
			fmt.Sprintf("backup description must be 1-256 bytes, got %d", len(description)))
	}

	ts := createdAt.Unix()
	if ts < minTimestamp || ts >= maxTimestamp {
		return "", apierr.New(apierr.CodeConfigError,
			fmt.Sprintf("backup creation time %d is outside the representable range", ts))
	}

	return fmt.Sprintf("%010d-%s", ts, percentEncode(description)), nil
}

// FileName appends ext (without a leading dot) to name, joined by ".".
// Exactly one extension is added per call, matching the one-layer-one-
// extension rule of the writer chain.
func FileName(name, ext string) string {
	return name + "." + ext
}

// unreserved is the RFC 3986 unreserved set, minus '.': ALPHA / DIGIT /
// "-" / "_" / "~". Excluding '.' means every dot in a description is
// percent-encoded, preventing it from being mistaken for an extension
// separator; every other non-unreserved byte (including '/') is encoded
// by the same fallthrough, so no extra casing is needed for it.
func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '~':
		return true
	default:
		return false
	}
}

func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func percentDecode(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", apierr.New(apierr.CodeConfigError, "truncated percent-encoding in backup name")
		}
		n, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", apierr.Wrap(apierr.CodeConfigError, "invalid percent-encoding in backup name", err)
		}
		b.WriteByte(byte(n))
		i += 2
	}
	return b.String(), nil
}

// Components is the parsed form of a Backup Name (with or without
// trailing extensions).
type Components struct {
	CreatedAt   time.Time
	Description string
	Extensions  []string
}

// Parse splits fileName into its timestamp, description and extensions.
// fileName may be a bare Backup Name or a full Backup File Name.
func Parse(fileName string) (Components, error) {
	prefix, rest, ok := strings.Cut(fileName, "-")
	if !ok {
		return Components{}, apierr.New(apierr.CodeConfigError, "backup file name is missing the timestamp prefix: "+fileName)
	}

	secs, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return Components{}, apierr.Wrap(apierr.CodeConfigError, "backup file name has a non-numeric timestamp prefix", err)
	}

	description, extPart, hasExt := strings.Cut(rest, ".")

	decoded, err := percentDecode(description)
	if err != nil {
		return Components{}, err
	}

	var extensions []string
	if hasExt {
		extensions = strings.Split(extPart, ".")
	}

	return Components{
		CreatedAt:   time.Unix(secs, 0).UTC(),
		Description: decoded,
		Extensions:  extensions,
	}, nil
}
