package control

import (
	"fmt"
	"strconv"
)

// DaemonError is returned when the daemon answers with the error bit set.
type DaemonError struct {
	Code    ErrorCode
	Message string
}

func (e *DaemonError) Error() string {
	return "daemon error: " + e.Message
}

// NewDaemonError builds a DaemonError from an error response. The data
// section is used as the message when present, the code text otherwise.
func NewDaemonError(m *Message) *DaemonError {
	code := m.ErrorCode()
	text := trimText(string(m.Payload()))
	if data, err := m.Data(); err == nil && len(data) > 0 {
		text = trimText(string(data))
	}
	if text == "" {
		text = code.String()
	}
	return &DaemonError{Code: code, Message: text}
}

// ParseError is returned when a payload or a value in it cannot be parsed.
type ParseError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s: %s (input %q)", e.Field, e.Reason, truncate(e.Input, 64))
	}
	return fmt.Sprintf("parse variable list: %s (input %q)", e.Reason, truncate(e.Input, 64))
}

// MalformedResponseError is returned when a received datagram cannot hold
// a well-formed control message.
type MalformedResponseError struct {
	Length int
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed response (" + strconv.Itoa(e.Length) + " bytes): " + e.Reason
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// trimText strips the NUL padding and line breaks ntpd leaves around text
func trimText(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceOrNul(s[start]) {
		start++
	}
	for end > start && isSpaceOrNul(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceOrNul(c byte) bool {
	return c == 0 || c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
