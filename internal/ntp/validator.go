package ntp

import (
	"errors"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/maximewewer/ntpq-exporter/pkg/mathutil"
)

var (
	hostnamePattern  = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)
	maliciousPattern = regexp.MustCompile(`[;&|<>$` + "`" + `\x00\s]`)
)

// Validator sanity-checks what a daemon reports about itself
type Validator struct {
	maxOffset          time.Duration
	maxReferenceAge    time.Duration
	maxFutureReference time.Duration
}

// ValidationResult contains the result of validation
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// NewValidator creates a validator. Zero limits fall back to
// MaxAcceptableOffset and MaxReferenceAge.
func NewValidator(maxOffset, maxReferenceAge time.Duration) *Validator {
	if maxOffset <= 0 {
		maxOffset = MaxAcceptableOffset
	}
	if maxReferenceAge <= 0 {
		maxReferenceAge = MaxReferenceAge
	}
	return &Validator{
		maxOffset:          maxOffset,
		maxReferenceAge:    maxReferenceAge,
		maxFutureReference: MaxFutureReference,
	}
}

// Validate checks a result against the local clock. A reference time in the
// future or an absurd offset makes the result invalid; a stale reference
// or an offset above the limit only warns.
func (v *Validator) Validate(r *Result, now time.Time) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	if r == nil {
		result.Valid = false
		result.Errors = append(result.Errors, "nil result")
		return result
	}

	refTime := r.RefTime()
	switch {
	case r.RefTimeMillis == 0:
		result.Warnings = append(result.Warnings, "zero reference time")
	case refTime.After(now.Add(v.maxFutureReference)):
		result.Valid = false
		result.Errors = append(result.Errors, "reference time in the future: "+refTime.UTC().Format(time.RFC3339))
	case now.Sub(refTime) > v.maxReferenceAge:
		result.Warnings = append(result.Warnings, "stale reference time: "+now.Sub(refTime).Truncate(time.Second).String()+" old")
	}

	offset := mathutil.AbsDuration(r.Offset())
	if offset > SuspiciousOffsetThreshold {
		result.Valid = false
		result.Errors = append(result.Errors, "implausible offset: "+r.Offset().String())
	} else if offset > v.maxOffset {
		result.Warnings = append(result.Warnings, "large offset: "+r.Offset().String())
	}

	if !r.Status.Synchronized() {
		result.Warnings = append(result.Warnings, "daemon not synchronized (leap indicator = 3)")
	}

	return result
}

// ReferenceAge returns how long ago the daemon last updated its clock
func ReferenceAge(r *Result, now time.Time) time.Duration {
	if r == nil || r.RefTimeMillis == 0 {
		return 0
	}
	return now.Sub(r.RefTime())
}

// ValidateTargetAddress validates a daemon host name or address. Loopback and
// private addresses are accepted since the daemon is usually local.
func ValidateTargetAddress(host string) error {
	if host == "" {
		return errors.New("target address is empty")
	}

	if len(host) > 255 {
		return errors.New("target address is too long")
	}

	if strings.Contains(host, "\x00") {
		return errors.New("target address contains null byte")
	}

	if maliciousPattern.MatchString(host) {
		return errors.New("target address contains invalid characters")
	}

	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		if ip.IsUnspecified() || ip.IsMulticast() {
			return errors.New("target address must be a unicast address")
		}
		return nil
	}

	if !hostnamePattern.MatchString(host) {
		return errors.New("invalid target address format")
	}

	return nil
}

// ValidateTimeout validates a query timeout. Zero means no timeout.
func ValidateTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return errors.New("timeout must not be negative")
	}

	if timeout > 0 && timeout < 100*time.Millisecond {
		return errors.New("timeout too short (minimum 100ms)")
	}

	if timeout > 60*time.Second {
		return errors.New("timeout too long (maximum 60s)")
	}

	return nil
}
