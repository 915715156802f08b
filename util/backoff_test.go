package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewBackoff(t *testing.T) {
	_, err := NewBackoff(0, time.Second)
	require.Error(t, err)
	_, err = NewBackoff(time.Second, time.Millisecond)
	require.Error(t, err)
	b, err := NewBackoff(time.Millisecond, time.Second)
	require.NoError(t, err)
	require.Equal(t, time.Millisecond, b.Timeout())
}

func TestBackoffWait(t *testing.T) {
	b, err := NewBackoff(time.Millisecond, 3*time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Wait(ctx))
	require.Equal(t, 2*time.Millisecond, b.Timeout())
	require.NoError(t, b.Wait(ctx))
	require.Equal(t, 3*time.Millisecond, b.Timeout())

	b.Reset()
	require.Equal(t, time.Millisecond, b.Timeout())
}

func TestBackoffWaitCanceled(t *testing.T) {
	b, err := NewBackoff(time.Hour, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, b.Wait(ctx), context.Canceled)
	require.Equal(t, time.Hour, b.Timeout())
}
