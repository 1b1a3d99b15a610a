package ntp

import "time"

// Query defaults
const (
	// DefaultHost is queried when no host is given
	DefaultHost = "localhost"

	// DefaultSNTPTimeout bounds the mode 3 cross-check exchange
	DefaultSNTPTimeout = 5 * time.Second

	// DefaultPort is the NTP port, which also carries mode 6 traffic
	DefaultPort = 123

	// RequestVariables is the READVAR variable list sent with every query
	RequestVariables = "reftime,offset"

	// ReceiveBufferSize bounds the single reply datagram
	ReceiveBufferSize = 512
)

// Validation thresholds
const (
	// MaxAcceptableOffset is the largest daemon offset considered healthy
	MaxAcceptableOffset = 1 * time.Second

	// MaxFutureReference is how far ahead of local time reftime may be
	MaxFutureReference = 1 * time.Minute

	// MaxReferenceAge is the default staleness limit for reftime
	MaxReferenceAge = 1 * time.Hour

	// SuspiciousOffsetThreshold marks offsets no disciplined clock should report
	SuspiciousOffsetThreshold = 1000 * time.Second
)
