package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitorSweepsExpiredState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mfa.Begin(ctx, "analyst", "10.0.0.1")
	require.NoError(t, err)
	_, err = f.sessions.Register(ctx, RegisterInput{Token: issueFor(t, f, "analyst", "mfa"), AuthLevel: "mfa"})
	require.NoError(t, err)
	require.Equal(t, 2, f.kv.Len())

	j, err := NewJanitorService("@every 1m", f.kv)
	require.NoError(t, err)

	assert.Zero(t, j.Sweep(ctx))

	f.clock.Advance(time.Hour)
	assert.Equal(t, 2, j.Sweep(ctx))
	assert.Zero(t, f.kv.Len())
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	_, err := NewJanitorService("every now and then")
	assert.Error(t, err)
}

func TestJanitorStartStop(t *testing.T) {
	f := newFixture(t)
	j, err := NewJanitorService("@every 1h", f.kv)
	require.NoError(t, err)
	j.Start()
	j.Stop()
}
