package logging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "status code", err: errors.New("price api: status 429"), want: true},
		{name: "error code", err: errors.New("rate_limit exceeded"), want: true},
		{name: "wrapped", err: fmt.Errorf("fetch: %w", errors.New("HTTP 429 Too Many Requests")), want: true},
		{name: "other", err: errors.New("connection refused"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimit(tt.err))
		})
	}
}

func TestIsTimeout(t *testing.T) {
	assert.False(t, IsTimeout(nil))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("relay: %w", context.DeadlineExceeded)))
	assert.False(t, IsTimeout(errors.New("boom")))
}

func TestNew(t *testing.T) {
	lg, err := New("debug", true)
	require.NoError(t, err)
	assert.True(t, lg.Core().Enabled(-1))

	lg, err = New("not-a-level", false)
	require.NoError(t, err)
	assert.False(t, lg.Core().Enabled(-1))
}
