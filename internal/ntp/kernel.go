package ntp

import (
	"errors"
	"time"

	"github.com/maximewewer/ntpq-exporter/pkg/logger"
)

// ErrKernelUnsupported is returned by KernelReader.Read where adjtimex is unavailable
var ErrKernelUnsupported = errors.New("kernel timex reading is not supported on this platform (Linux only)")

// Kernel clock states returned by adjtimex
const (
	TIME_OK    = 0 // Clock synchronized
	TIME_INS   = 1 // Insert leap second
	TIME_DEL   = 2 // Delete leap second
	TIME_OOP   = 3 // Leap second in progress
	TIME_WAIT  = 4 // Leap second has occurred
	TIME_ERROR = 5 // Clock not synchronized
)

// Kernel status bits
const (
	STA_PLL       = 0x0001
	STA_PPSFREQ   = 0x0002
	STA_PPSTIME   = 0x0004
	STA_FLL       = 0x0008
	STA_INS       = 0x0010
	STA_DEL       = 0x0020
	STA_UNSYNC    = 0x0040
	STA_FREQHOLD  = 0x0080
	STA_PPSSIGNAL = 0x0100
	STA_PPSJITTER = 0x0200
	STA_PPSWANDER = 0x0400
	STA_PPSERROR  = 0x0800
	STA_CLOCKERR  = 0x1000
	STA_NANO      = 0x2000
	STA_MODE      = 0x4000
	STA_CLK       = 0x8000
)

// KernelTimex is the kernel PLL state the daemon disciplines
type KernelTimex struct {
	Offset     time.Duration
	Frequency  int64 // scaled ppm, 65536 = 1 ppm
	MaxError   time.Duration
	EstError   time.Duration
	Status     int32
	Constant   int64
	Precision  time.Duration
	Tick       int64
	State      int   // adjtimex return value
	SyncStatus string
}

// KernelReader reads kernel NTP state via adjtimex
type KernelReader struct {
	enabled bool
}

// NewKernelReader creates a new kernel reader
func NewKernelReader(enabled bool) *KernelReader {
	return &KernelReader{
		enabled: enabled,
	}
}

// Read reads the current kernel NTP state without modifying it
func (k *KernelReader) Read() (*KernelTimex, error) {
	if !k.enabled {
		return nil, errors.New("kernel reader is disabled")
	}

	result, err := readTimex()
	if err != nil {
		logger.SafeWarn("ntp", "Failed to read kernel timex", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	logger.SafeDebug("ntp", "Kernel timex state read", map[string]interface{}{
		"offset_us": result.Offset.Microseconds(),
		"frequency": result.Frequency,
		"status":    result.SyncStatus,
	})

	return result, nil
}

// IsSynchronized returns true if the kernel clock is synchronized
func (k *KernelTimex) IsSynchronized() bool {
	return (k.Status&STA_UNSYNC) == 0 && k.State != TIME_ERROR
}

// HasLeapSecond returns true if a leap second is pending
func (k *KernelTimex) HasLeapSecond() bool {
	return (k.Status&STA_INS) != 0 || (k.Status&STA_DEL) != 0
}

// IsPPSActive returns true if PPS signal is active
func (k *KernelTimex) IsPPSActive() bool {
	return (k.Status & STA_PPSSIGNAL) != 0
}

// GetOffsetSeconds returns the offset in seconds (for metrics)
func (k *KernelTimex) GetOffsetSeconds() float64 {
	return k.Offset.Seconds()
}

// GetFrequencyPPM returns the frequency offset in PPM
func (k *KernelTimex) GetFrequencyPPM() float64 {
	return float64(k.Frequency) / 65536.0
}

// GetMaxErrorSeconds returns max error in seconds
func (k *KernelTimex) GetMaxErrorSeconds() float64 {
	return k.MaxError.Seconds()
}

// GetEstErrorSeconds returns estimated error in seconds
func (k *KernelTimex) GetEstErrorSeconds() float64 {
	return k.EstError.Seconds()
}

// statusString converts the status word and clock state to a label
func statusString(status int32, state int) string {
	if (status & STA_UNSYNC) != 0 {
		return "unsynchronized"
	}

	if (status & STA_CLOCKERR) != 0 {
		return "clock_error"
	}

	switch state {
	case TIME_OK:
		return "synchronized"
	case TIME_INS:
		return "leap_insert_pending"
	case TIME_DEL:
		return "leap_delete_pending"
	case TIME_OOP:
		return "leap_in_progress"
	case TIME_WAIT:
		return "leap_occurred"
	case TIME_ERROR:
		return "error"
	default:
		return "unknown"
	}
}

// kernelOffset scales the raw offset, which is in nanoseconds under STA_NANO
func kernelOffset(raw int64, status int32) time.Duration {
	if status&STA_NANO != 0 {
		return time.Duration(raw)
	}
	return time.Duration(raw) * time.Microsecond
}
