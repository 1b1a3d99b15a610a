package control

import "strconv"

// SystemStatus is the status word returned with system variables:
// leap indicator (bits 15-14), clock source (13-8), event counter (7-4)
// and last event code (3-0).
type SystemStatus uint16

// Leap returns the daemon's leap indicator, 3 meaning unsynchronized
func (s SystemStatus) Leap() uint8 {
	return uint8(s>>14) & 0x3
}

// ClockSource returns the selected clock source code
func (s SystemStatus) ClockSource() uint8 {
	return uint8(s>>8) & 0x3F
}

// EventCount returns the number of system events since the last read
func (s SystemStatus) EventCount() uint8 {
	return uint8(s>>4) & 0xF
}

// EventCode returns the most recent system event code
func (s SystemStatus) EventCode() uint8 {
	return uint8(s) & 0xF
}

// Synchronized reports whether the leap indicator shows a synchronized clock
func (s SystemStatus) Synchronized() bool {
	return s.Leap() != 3
}

var clockSources = map[uint8]string{
	0: "unspecified",
	1: "pps",
	2: "lf_radio",
	3: "hf_radio",
	4: "uhf_radio",
	5: "local",
	6: "ntp",
	7: "other",
	8: "wristwatch",
	9: "telephone",
}

// ClockSourceName returns a short label for the clock source code
func (s SystemStatus) ClockSourceName() string {
	if name, ok := clockSources[s.ClockSource()]; ok {
		return name
	}
	return "source_" + strconv.Itoa(int(s.ClockSource()))
}

// ErrorCode is the code carried by an error response
type ErrorCode uint8

// Error codes returned by ntpd
const (
	ErrUnspecified ErrorCode = iota
	ErrPermission
	ErrBadFormat
	ErrBadOpCode
	ErrBadAssociation
	ErrUnknownVariable
	ErrBadValue
	ErrRestricted
)

var errorCodeText = [...]string{
	ErrUnspecified:     "unspecified error",
	ErrPermission:      "authentication failure",
	ErrBadFormat:       "invalid message length or format",
	ErrBadOpCode:       "invalid opcode",
	ErrBadAssociation:  "unknown association identifier",
	ErrUnknownVariable: "unknown variable name",
	ErrBadValue:        "invalid variable value",
	ErrRestricted:      "administratively prohibited",
}

// String describes the error code
func (c ErrorCode) String() string {
	if int(c) < len(errorCodeText) {
		return errorCodeText[c]
	}
	return "error code " + strconv.Itoa(int(c))
}
