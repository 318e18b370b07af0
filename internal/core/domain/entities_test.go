package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClearance(t *testing.T) {
	tests := []struct {
		in   string
		want Clearance
	}{
		{"UNCLASSIFIED", ClearanceUnclassified},
		{"confidential", ClearanceConfidential},
		{" Secret ", ClearanceSecret},
		{"TOP_SECRET", ClearanceTopSecret},
		{"top secret", ClearanceTopSecret},
	}
	for _, tt := range tests {
		got, err := ParseClearance(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseClearance("COSMIC")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClearanceOrder(t *testing.T) {
	levels := Clearances()
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1].Level(), levels[i].Level())
		assert.True(t, levels[i].Dominates(levels[i-1]))
		assert.False(t, levels[i-1].Dominates(levels[i]))
	}
	assert.False(t, Clearance(9).Valid())
}

func TestClearanceJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		C Clearance `json:"c"`
	}{ClearanceTopSecret})
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":"TOP_SECRET"}`, string(b))

	var req PolicyRequest
	err = json.Unmarshal([]byte(`{"subject_role":"SOLDIER","subject_clearance":"SECRET","resource_classification":"CONFIDENTIAL","action":"execute"}`), &req)
	require.NoError(t, err)
	assert.Equal(t, RoleSoldier, req.SubjectRole)
	assert.Equal(t, ClearanceSecret, req.SubjectClearance)
	assert.Equal(t, ClearanceConfidential, req.ResourceClassification)
	assert.Equal(t, ActionExecute, req.Action)

	err = json.Unmarshal([]byte(`{"subject_role":"ADMIN"}`), &req)
	assert.Error(t, err)
	err = json.Unmarshal([]byte(`{"subject_clearance":"ULTRA"}`), &req)
	assert.Error(t, err)
	err = json.Unmarshal([]byte(`{"action":"delete"}`), &req)
	assert.Error(t, err)
}

func TestLockoutRecordState(t *testing.T) {
	now := mustTime(t, "2026-02-14T12:00:00Z")
	until := now.Add(300 * time.Second)
	r := &LockoutRecord{Attempts: 5, LockedUntil: &until}

	assert.True(t, r.LockedAt(now))
	assert.False(t, r.ExpiredAt(now))
	assert.False(t, r.LockedAt(until))
	assert.True(t, r.ExpiredAt(until))

	open := &LockoutRecord{Attempts: 2}
	assert.False(t, open.LockedAt(now))
	assert.False(t, open.ExpiredAt(now))
}

func TestTypedErrorsUnwrap(t *testing.T) {
	var err error = &AccountLockedError{RemainingSeconds: 30, Attempts: 5}
	assert.True(t, errors.Is(err, ErrAccountLocked))

	var locked *AccountLockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, 30, locked.RemainingSeconds)

	err = &PolicyDeniedError{Reason: "Insufficient Clearance"}
	assert.ErrorIs(t, err, ErrPolicyDenied)
	assert.Contains(t, err.Error(), "Insufficient Clearance")

	err = &InvalidCredentialsError{AttemptsRemaining: 3}
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
