package ntp

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/control"
	"github.com/maximewewer/ntpq-exporter/pkg/logger"
)

// Querier reads the offset and reference time a daemon reports about itself
type Querier interface {
	Query(ctx context.Context, host string, port int) (*Result, error)
}

// Result is the outcome of one control query
type Result struct {
	// OffsetMillis is the daemon's offset truncated to whole milliseconds
	OffsetMillis int64

	// RefTimeMillis is the reference timestamp in milliseconds since the Unix epoch
	RefTimeMillis int64

	Target   string
	Status   control.SystemStatus
	Duration time.Duration
}

// Offset returns the daemon offset as a duration
func (r *Result) Offset() time.Duration {
	return time.Duration(r.OffsetMillis) * time.Millisecond
}

// RefTime returns the reference timestamp
func (r *Result) RefTime() time.Time {
	return time.UnixMilli(r.RefTimeMillis)
}

// TransportError is returned when the exchange with the daemon fails at the
// socket level.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return e.Op + " " + e.Addr + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client issues mode 6 READVAR queries.
// The zero value is usable and waits for a reply indefinitely.
type Client struct {
	timeout     time.Duration
	rateLimiter *RateLimiter
}

// Option configures a Client
type Option func(*Client)

// WithTimeout bounds each query. Zero or negative disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRateLimiter makes every query wait for the limiter first
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) {
		c.rateLimiter = rl
	}
}

// NewClient creates a new control query client
func NewClient(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query sends one READVAR request for reftime and offset to host:port and
// waits for one reply. An empty host means localhost and port 0 means 123.
func (c *Client) Query(ctx context.Context, host string, port int) (*Result, error) {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, Target{Host: host, Port: port}); err != nil {
			return nil, fmt.Errorf("rate limit exceeded: %w", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := c.exchange(ctx, addr)
	duration := time.Since(start)
	logger.Query(addr, duration, err)
	if err != nil {
		return nil, err
	}

	result.Target = addr
	result.Duration = duration
	return result, nil
}

func (c *Client) exchange(ctx context.Context, addr string) (*Result, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Addr: addr, Err: err}
	}
	defer conn.Close()

	// Cancellation unblocks the read by moving the deadline into the past
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	request := control.BuildRequest(control.OpReadVar, RequestVariables)
	if _, err := conn.Write(request.Bytes()); err != nil {
		return nil, &TransportError{Op: "write", Addr: addr, Err: contextOr(ctx, err)}
	}

	buf := make([]byte, ReceiveBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, &TransportError{Op: "read", Addr: addr, Err: contextOr(ctx, err)}
	}

	return parseResponse(buf, n, addr)
}

// contextOr prefers the context error so callers can match on
// context.Canceled and context.DeadlineExceeded
func contextOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func parseResponse(buf []byte, n int, addr string) (*Result, error) {
	msg, err := control.DecodeResponse(buf, n)
	if err != nil {
		return nil, err
	}

	if msg.IsError() {
		return nil, control.NewDaemonError(msg)
	}

	if !msg.IsResponse() || msg.Mode() != control.ModeControl {
		return nil, &control.MalformedResponseError{Length: msg.Size(), Reason: "not a mode 6 response"}
	}

	if msg.HasMore() {
		logger.SafeDebug("ntp", "Response has more fragments, parsing first only", map[string]interface{}{
			"target": addr,
			"count":  msg.Count(),
		})
	}

	data, err := msg.Data()
	if err != nil {
		return nil, err
	}

	values, err := control.Extract(string(data), "reftime", "offset")
	if err != nil {
		return nil, err
	}

	refTime, err := control.ParseTimestamp(values["reftime"])
	if err != nil {
		return nil, err
	}

	offset, err := parseOffset(values["offset"])
	if err != nil {
		return nil, err
	}

	return &Result{
		OffsetMillis:  offset,
		RefTimeMillis: refTime,
		Status:        msg.SystemStatus(),
	}, nil
}

// parseOffset reads ntpd's decimal millisecond offset, truncated toward zero
func parseOffset(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0, &control.ParseError{Field: "offset", Input: s, Reason: "not a decimal number"}
	}
	return int64(f), nil
}
