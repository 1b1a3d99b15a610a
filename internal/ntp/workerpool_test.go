package ntp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	assert.Equal(t, 4, NewWorkerPool(4, NewMockQuerier()).Size())
	assert.Equal(t, 1, NewWorkerPool(0, NewMockQuerier()).Size())
	assert.Equal(t, 1, NewWorkerPool(-3, NewMockQuerier()).Size())
}

func TestWorkerPool_QueryAll_PreservesOrder(t *testing.T) {
	mock := NewMockQuerier()
	mock.SetupSynchronizedDaemon("10.0.0.1", 123, 1, time.Minute)
	mock.SetError("10.0.0.2", 123, errors.New("connection refused"))
	mock.SetupSynchronizedDaemon("10.0.0.3", 1123, 3, time.Minute)
	mock.SetDelay("10.0.0.1", 123, 30*time.Millisecond)

	targets := []Target{
		{Host: "10.0.0.1", Port: 123},
		{Host: "10.0.0.2", Port: 123},
		{Host: "10.0.0.3", Port: 1123},
	}

	results, err := NewWorkerPool(3, mock).QueryAll(context.Background(), targets)

	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, targets[0], results[0].Target)
	require.NoError(t, results[0].Error)
	assert.Equal(t, int64(1), results[0].Result.OffsetMillis)
	assert.GreaterOrEqual(t, results[0].Duration, 30*time.Millisecond)

	assert.Equal(t, targets[1], results[1].Target)
	assert.Error(t, results[1].Error)
	assert.Nil(t, results[1].Result)

	assert.Equal(t, targets[2], results[2].Target)
	assert.Equal(t, int64(3), results[2].Result.OffsetMillis)
}

func TestWorkerPool_QueryAll_BoundedConcurrency(t *testing.T) {
	mock := NewMockQuerier()
	targets := make([]Target, 4)
	for i := range targets {
		targets[i] = Target{Host: "localhost", Port: 1000 + i}
		mock.SetupSynchronizedDaemon("localhost", 1000+i, 0, time.Minute)
		mock.SetDelay("localhost", 1000+i, 50*time.Millisecond)
	}

	start := time.Now()
	results, err := NewWorkerPool(2, mock).QueryAll(context.Background(), targets)
	elapsed := time.Since(start)

	require.NoError(t, err)
	for _, r := range results {
		assert.NoError(t, r.Error)
	}
	// Two rounds of two parallel queries
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestWorkerPool_QueryAll_NoTargets(t *testing.T) {
	_, err := NewWorkerPool(2, NewMockQuerier()).QueryAll(context.Background(), nil)

	assert.Error(t, err)
}

func TestWorkerPool_QueryAll_CancelledContext(t *testing.T) {
	mock := NewMockQuerier()
	for _, port := range []int{123, 124} {
		mock.SetupSynchronizedDaemon("localhost", port, 0, time.Minute)
		mock.SetDelay("localhost", port, time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewWorkerPool(1, mock).QueryAll(ctx, []Target{{Host: "localhost", Port: 123}, {Host: "localhost", Port: 124}})

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Error, context.Canceled)
	}
}

func TestTarget_String(t *testing.T) {
	assert.Equal(t, "localhost:123", Target{}.String())
	assert.Equal(t, "[::1]:4123", Target{Host: "::1", Port: 4123}.String())
}
