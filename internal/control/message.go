// Package control implements the NTP mode 6 control message format.
//
// A control message is a 12-byte header followed by up to 468 bytes of
// data (RFC 1305, Appendix B):
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|LI | VN  |Mode |R|E|M|   Op    |           Sequence            |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|            Status             |         Association ID        |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|            Offset             |             Count             |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	.                     Data (468 octets max)                     .
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// The padding and authenticator trailer are not produced or checked.
package control

import (
	"encoding/binary"
)

const (
	// HeaderSize is the size of the fixed control message header
	HeaderSize = 12

	// MaxDataSize is the protocol ceiling for the data section. It is
	// documented but not enforced when building requests.
	MaxDataSize = 468

	// ModeControl is the NTP association mode used by control messages
	ModeControl = 6

	// Version4 is the NTP version written into requests
	Version4 = 4
)

// Control message opcodes
const (
	OpReadStatus   uint8 = 1
	OpReadVar      uint8 = 2
	OpWriteVar     uint8 = 3
	OpReadClock    uint8 = 4
	OpWriteClock   uint8 = 5
	OpSetTrap      uint8 = 6
	OpAsyncMsg     uint8 = 7
	OpConfigure    uint8 = 8
	OpSaveConfig   uint8 = 9
	OpReadMRU      uint8 = 10
	OpReadOrdlistA uint8 = 11
	OpReqNonce     uint8 = 12
	OpUnsetTrap    uint8 = 31
)

// Field identifies a header field
type Field int

// Header fields
const (
	FieldLeap Field = iota
	FieldVersion
	FieldMode
	FieldResponse
	FieldError
	FieldMore
	FieldOpCode
	FieldSequence
	FieldStatus
	FieldAssociationID
	FieldOffset
	FieldCount
)

// fieldLayout locates a field: byte index, bit shift within that byte and
// width in bits. Width 16 marks a big-endian word starting at index.
type fieldLayout struct {
	index int
	shift uint
	width uint
}

var layouts = [...]fieldLayout{
	FieldLeap:          {index: 0, shift: 6, width: 2},
	FieldVersion:       {index: 0, shift: 3, width: 3},
	FieldMode:          {index: 0, shift: 0, width: 3},
	FieldResponse:      {index: 1, shift: 7, width: 1},
	FieldError:         {index: 1, shift: 6, width: 1},
	FieldMore:          {index: 1, shift: 5, width: 1},
	FieldOpCode:        {index: 1, shift: 0, width: 5},
	FieldSequence:      {index: 2, width: 16},
	FieldStatus:        {index: 4, width: 16},
	FieldAssociationID: {index: 6, width: 16},
	FieldOffset:        {index: 8, width: 16},
	FieldCount:         {index: 10, width: 16},
}

var fieldNames = [...]string{
	FieldLeap:          "leap",
	FieldVersion:       "version",
	FieldMode:          "mode",
	FieldResponse:      "response",
	FieldError:         "error",
	FieldMore:          "more",
	FieldOpCode:        "opcode",
	FieldSequence:      "sequence",
	FieldStatus:        "status",
	FieldAssociationID: "association_id",
	FieldOffset:        "offset",
	FieldCount:         "count",
}

// String returns the field name
func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "unknown"
	}
	return fieldNames[f]
}

// Width returns the field width in bits
func (f Field) Width() uint {
	return layouts[f].width
}

// Fields lists every header field in wire order
func Fields() []Field {
	return []Field{
		FieldLeap, FieldVersion, FieldMode,
		FieldResponse, FieldError, FieldMore, FieldOpCode,
		FieldSequence, FieldStatus, FieldAssociationID, FieldOffset, FieldCount,
	}
}

// Message is a control message backed by a buffer it exclusively owns.
// Accessors read and write through the buffer in place.
type Message struct {
	buf []byte
}

// NewMessage wraps buf without copying. The buffer must hold at least
// HeaderSize bytes and must not be shared with another Message.
func NewMessage(buf []byte) *Message {
	return &Message{buf: buf}
}

// BuildRequest creates a request carrying variables as its data section.
// Sequence, status, association ID and offset are left at zero.
func BuildRequest(opCode uint8, variables string) *Message {
	m := &Message{buf: make([]byte, HeaderSize+len(variables))}
	copy(m.buf[HeaderSize:], variables)

	m.SetMode(ModeControl)
	m.SetVersion(Version4)
	m.SetOpCode(opCode)
	m.SetSequence(0)
	m.SetCount(uint16(len(variables)))

	return m
}

// DecodeResponse copies the first n bytes of raw into a new message. The
// only check is that a full header is present; field values are not
// validated.
func DecodeResponse(raw []byte, n int) (*Message, error) {
	if n < 0 || n > len(raw) {
		return nil, &MalformedResponseError{Length: n, Reason: "length exceeds receive buffer"}
	}
	if n < HeaderSize {
		return nil, &MalformedResponseError{Length: n, Reason: "shorter than control header"}
	}

	buf := make([]byte, n)
	copy(buf, raw[:n])
	return &Message{buf: buf}, nil
}

// Get reads a header field
func (m *Message) Get(f Field) uint16 {
	l := layouts[f]
	if l.width == 16 {
		return binary.BigEndian.Uint16(m.buf[l.index:])
	}

	mask := byte(1<<l.width - 1)
	return uint16((m.buf[l.index] >> l.shift) & mask)
}

// Set writes a header field. Bits above the field width are discarded and
// neighbouring fields in the same byte are left untouched.
func (m *Message) Set(f Field, value uint16) {
	l := layouts[f]
	if l.width == 16 {
		m.buf[l.index] = byte(value >> 8)
		m.buf[l.index+1] = byte(value & 0xFF)
		return
	}

	mask := byte(1<<l.width - 1)
	b := m.buf[l.index]
	m.buf[l.index] = (b &^ (mask << l.shift)) | ((byte(value) & mask) << l.shift)
}

// LeapIndicator returns the two leading bits of the header
func (m *Message) LeapIndicator() uint8 { return uint8(m.Get(FieldLeap)) }

// SetLeapIndicator sets the two leading bits of the header
func (m *Message) SetLeapIndicator(li uint8) { m.Set(FieldLeap, uint16(li)) }

// Version returns the NTP version number
func (m *Message) Version() uint8 { return uint8(m.Get(FieldVersion)) }

// SetVersion sets the NTP version number
func (m *Message) SetVersion(v uint8) { m.Set(FieldVersion, uint16(v)) }

// Mode returns the association mode, 6 for control messages
func (m *Message) Mode() uint8 { return uint8(m.Get(FieldMode)) }

// SetMode sets the association mode
func (m *Message) SetMode(mode uint8) { m.Set(FieldMode, uint16(mode)) }

// IsResponse reports whether the response bit is set
func (m *Message) IsResponse() bool { return m.Get(FieldResponse) == 1 }

// SetResponse sets or clears the response bit
func (m *Message) SetResponse(on bool) { m.Set(FieldResponse, boolBit(on)) }

// IsError reports whether the error bit is set. When it is, the data
// section holds an error description instead of a variable list.
func (m *Message) IsError() bool { return m.Get(FieldError) == 1 }

// SetError sets or clears the error bit
func (m *Message) SetError(on bool) { m.Set(FieldError, boolBit(on)) }

// HasMore reports whether the more bit is set
func (m *Message) HasMore() bool { return m.Get(FieldMore) == 1 }

// SetMore sets or clears the more bit
func (m *Message) SetMore(on bool) { m.Set(FieldMore, boolBit(on)) }

// OpCode returns the 5-bit operation code
func (m *Message) OpCode() uint8 { return uint8(m.Get(FieldOpCode)) }

// SetOpCode sets the 5-bit operation code
func (m *Message) SetOpCode(op uint8) { m.Set(FieldOpCode, uint16(op)) }

// Sequence returns the sequence number
func (m *Message) Sequence() uint16 { return m.Get(FieldSequence) }

// SetSequence sets the sequence number
func (m *Message) SetSequence(seq uint16) { m.Set(FieldSequence, seq) }

// Status returns the status word
func (m *Message) Status() uint16 { return m.Get(FieldStatus) }

// SetStatus sets the status word
func (m *Message) SetStatus(status uint16) { m.Set(FieldStatus, status) }

// AssociationID returns the association ID, 0 for the system variables
func (m *Message) AssociationID() uint16 { return m.Get(FieldAssociationID) }

// SetAssociationID sets the association ID
func (m *Message) SetAssociationID(id uint16) { m.Set(FieldAssociationID, id) }

// Offset returns the byte offset of this fragment within a multi-packet
// response. It is unrelated to the clock offset.
func (m *Message) Offset() uint16 { return m.Get(FieldOffset) }

// SetOffset sets the fragment byte offset
func (m *Message) SetOffset(off uint16) { m.Set(FieldOffset, off) }

// Count returns the declared data length
func (m *Message) Count() uint16 { return m.Get(FieldCount) }

// SetCount sets the declared data length
func (m *Message) SetCount(n uint16) { m.Set(FieldCount, n) }

// Bytes returns the underlying buffer
func (m *Message) Bytes() []byte {
	return m.buf
}

// Size returns the total message length
func (m *Message) Size() int {
	return len(m.buf)
}

// Payload returns a copy of every byte after the header. Its length is
// Size()-HeaderSize, which may differ from Count() on received messages.
func (m *Message) Payload() []byte {
	payload := make([]byte, len(m.buf)-HeaderSize)
	copy(payload, m.buf[HeaderSize:])
	return payload
}

// Data returns a copy of the data section as declared by Count(), which
// drops any padding or authenticator the sender appended.
func (m *Message) Data() ([]byte, error) {
	count := int(m.Count())
	available := len(m.buf) - HeaderSize
	if count > available {
		return nil, &MalformedResponseError{
			Length: len(m.buf),
			Reason: "count exceeds received data",
		}
	}

	data := make([]byte, count)
	copy(data, m.buf[HeaderSize:HeaderSize+count])
	return data, nil
}

// SystemStatus decodes the status word of a system variables response.
func (m *Message) SystemStatus() SystemStatus {
	return SystemStatus(m.Status())
}

// ErrorCode returns the error code carried in the high byte of the status
// word of an error response.
func (m *Message) ErrorCode() ErrorCode {
	return ErrorCode(m.Status() >> 8)
}

func boolBit(on bool) uint16 {
	if on {
		return 1
	}
	return 0
}
