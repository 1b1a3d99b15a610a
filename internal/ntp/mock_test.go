package ntp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockQuerier_ScriptedOutcomes(t *testing.T) {
	mock := NewMockQuerier()
	mock.SetupSynchronizedDaemon("", 0, 12, time.Minute)
	mock.SetError("10.0.0.1", 123, errors.New("boom"))

	result, err := mock.Query(context.Background(), "localhost", 123)
	require.NoError(t, err)
	assert.Equal(t, int64(12), result.OffsetMillis)
	assert.Equal(t, "localhost:123", result.Target)
	assert.True(t, result.Status.Synchronized())

	_, err = mock.Query(context.Background(), "10.0.0.1", 123)
	assert.EqualError(t, err, "boom")

	_, err = mock.Query(context.Background(), "unknown", 123)
	assert.Error(t, err)

	assert.Equal(t, 1, mock.CallCount("localhost", 123))
}

func TestMockQuerier_ResultsAreCopies(t *testing.T) {
	mock := NewMockQuerier()
	mock.SetupSynchronizedDaemon("localhost", 123, 1, time.Minute)

	first, _ := mock.Query(context.Background(), "localhost", 123)
	first.OffsetMillis = 999

	second, _ := mock.Query(context.Background(), "localhost", 123)
	assert.Equal(t, int64(1), second.OffsetMillis)
}

func TestMockQuerier_Flapping(t *testing.T) {
	mock := NewMockQuerier()
	mock.SetupSynchronizedDaemon("localhost", 123, 1, time.Minute)
	mock.SetFlapping("localhost", 123, true)

	_, err1 := mock.Query(context.Background(), "localhost", 123)
	_, err2 := mock.Query(context.Background(), "localhost", 123)

	assert.NoError(t, err1)
	var transportErr *TransportError
	assert.ErrorAs(t, err2, &transportErr)
}

func TestMockQuerier_DelayHonoursContext(t *testing.T) {
	mock := NewMockQuerier()
	mock.SetupSynchronizedDaemon("localhost", 123, 1, time.Minute)
	mock.SetDelay("localhost", 123, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mock.Query(ctx, "localhost", 123)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockQuerier_Reset(t *testing.T) {
	mock := NewMockQuerier()
	mock.SetupSynchronizedDaemon("localhost", 123, 1, time.Minute)
	_, _ = mock.Query(context.Background(), "localhost", 123)

	mock.Reset()

	assert.Zero(t, mock.CallCount("localhost", 123))
	_, err := mock.Query(context.Background(), "localhost", 123)
	assert.Error(t, err)
}
