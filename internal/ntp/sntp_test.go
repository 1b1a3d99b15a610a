package ntp

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ntpEpochOffset = 2_208_988_800

func putNTPTime(b []byte, t time.Time) {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := (uint64(t.Nanosecond()) << 32) / 1e9
	binary.BigEndian.PutUint32(b[0:4], uint32(secs))
	binary.BigEndian.PutUint32(b[4:8], uint32(frac))
}

// startFakeSNTPServer answers mode 3 requests as a stratum 2 server whose
// clock runs skew ahead of the local one.
func startFakeSNTPServer(t *testing.T, skew time.Duration) (string, int) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 128)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if n < 48 {
				continue
			}

			now := time.Now().Add(skew)
			reply := make([]byte, 48)
			reply[0] = 0<<6 | 4<<3 | 4 // LI 0, version 4, server mode
			reply[1] = 2               // stratum
			reply[2] = 6               // poll
			reply[3] = 0xEC            // precision
			binary.BigEndian.PutUint32(reply[4:8], 0x00000100)   // root delay
			binary.BigEndian.PutUint32(reply[8:12], 0x00000100)  // root dispersion
			binary.BigEndian.PutUint32(reply[12:16], 0x7F000001) // reference ID
			putNTPTime(reply[16:24], now.Add(-10*time.Second))
			copy(reply[24:32], buf[40:48]) // origin = client transmit
			putNTPTime(reply[32:40], now)
			putNTPTime(reply[40:48], now)

			_, _ = conn.WriteTo(reply, addr)
		}
	}()

	return "127.0.0.1", conn.LocalAddr().(*net.UDPAddr).Port
}

func TestNewSNTPChecker_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultSNTPTimeout, NewSNTPChecker(0).timeout)
	assert.Equal(t, time.Second, NewSNTPChecker(time.Second).timeout)
}

func TestSNTPChecker_Measure(t *testing.T) {
	host, port := startFakeSNTPServer(t, 2*time.Second)

	m, err := NewSNTPChecker(2*time.Second).Measure(context.Background(), host, port)

	require.NoError(t, err)
	assert.Equal(t, targetKey(host, port), m.Target)
	assert.Equal(t, uint8(2), m.Stratum)
	assert.InDelta(t, 2.0, m.ClockOffset.Seconds(), 0.5)
}

func TestSNTPChecker_MeasureUnreachable(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())

	_, err = NewSNTPChecker(200*time.Millisecond).Measure(context.Background(), "127.0.0.1", port)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestSNTPChecker_MeasureCancelled(t *testing.T) {
	// Silent server
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	port := conn.LocalAddr().(*net.UDPAddr).Port

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = NewSNTPChecker(2*time.Second).Measure(ctx, "127.0.0.1", port)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
