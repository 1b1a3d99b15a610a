package control

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// unixEraOffset is the number of seconds between 1900-01-01 and 1970-01-01
	unixEraOffset int64 = 2_208_988_800

	// eraLength is the number of seconds in one NTP era (2^32)
	eraLength int64 = 1 << 32
)

// ParseTimestamp converts the hex NTP timestamp ntpd prints for reftime
// (for instance "0xe2fc1a2b.00000000") into milliseconds since the Unix
// epoch. Seconds with the most significant bit clear are taken to be in
// era 1 (from 2036-02-07), following RFC 4330. The fraction is truncated
// to whole milliseconds. An all-zero timestamp means the daemon has no
// reference yet and is returned as 0.
func ParseTimestamp(s string) (int64, error) {
	raw := s
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return 0, &ParseError{Field: "reftime", Input: raw, Reason: "missing 0x prefix"}
	}
	s = s[2:]

	secText, fracText, hasFrac := strings.Cut(s, ".")
	if secText == "" || len(secText) > 8 || (hasFrac && (fracText == "" || len(fracText) > 8)) {
		return 0, &ParseError{Field: "reftime", Input: raw, Reason: "not an NTP timestamp"}
	}

	secs, err := strconv.ParseUint(secText, 16, 32)
	if err != nil {
		return 0, &ParseError{Field: "reftime", Input: raw, Reason: "invalid seconds: " + err.Error()}
	}

	var frac uint64
	if hasFrac {
		// Left-align short fractions so "8" reads as 0x80000000
		padded := fracText + strings.Repeat("0", 8-len(fracText))
		frac, err = strconv.ParseUint(padded, 16, 32)
		if err != nil {
			return 0, &ParseError{Field: "reftime", Input: raw, Reason: "invalid fraction: " + err.Error()}
		}
	}

	if secs == 0 && frac == 0 {
		return 0, nil
	}

	unixSecs := int64(secs) - unixEraOffset
	if secs&0x80000000 == 0 {
		unixSecs += eraLength
	}

	millis := int64((frac * 1000) >> 32)
	return unixSecs*1000 + millis, nil
}

// FormatTimestamp is the inverse of ParseTimestamp for times between 1968
// and 2104.
func FormatTimestamp(unixMillis int64) string {
	secs := floorDiv(unixMillis, 1000)
	millis := unixMillis - secs*1000

	ntpSecs := (secs + unixEraOffset) % eraLength
	// Round the fraction up so that truncation on parse recovers millis
	frac := (uint64(millis)<<32 + 999) / 1000

	return fmt.Sprintf("0x%08x.%08x", uint32(ntpSecs), uint32(frac))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
