package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"c5isr-identity/internal/adapters/store"
	"c5isr-identity/internal/config"
	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/pkg/clock"
)

// ============================================================
// Lockout Service - brute-force protection on credential checks
// ============================================================

const (
	lockoutKeyPrefix = "lockout:"

	// maxCASRetries bounds optimistic update loops on a contended key
	maxCASRetries = 32
)

// ErrStateContention is returned when a CAS loop keeps losing the race
var ErrStateContention = errors.New("state contention, retry the request")

// LockoutService counts failed attempts and locks keys that reach the threshold
type LockoutService struct {
	kv    store.KV
	clock clock.Clock
	cfg   config.LockoutConfig
}

// NewLockoutService creates a new lockout service
func NewLockoutService(kv store.KV, clk clock.Clock, cfg config.LockoutConfig) *LockoutService {
	return &LockoutService{kv: kv, clock: clk, cfg: cfg}
}

// Key returns the lockout key for an attempt from origin against username
func (s *LockoutService) Key(origin, username string) string {
	if s.cfg.Scope == config.LockoutScopeIdentity {
		return username
	}
	return origin + "|" + username
}

// MaxAttempts returns the lock threshold
func (s *LockoutService) MaxAttempts() int {
	return s.cfg.MaxAttempts
}

// Remaining returns how many failures rec can absorb before locking
func (s *LockoutService) Remaining(rec *domain.LockoutRecord) int {
	if rec == nil {
		return s.cfg.MaxAttempts
	}
	if n := s.cfg.MaxAttempts - rec.Attempts; n > 0 {
		return n
	}
	return 0
}

// Check reports the lock state of key. An expired lock is removed and
// reported open.
func (s *LockoutService) Check(ctx context.Context, key string) (*domain.LockStatus, error) {
	storeKey := lockoutKeyPrefix + key

	raw, rec, err := s.load(ctx, storeKey)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &domain.LockStatus{}, nil
	}

	now := s.clock.Now()
	switch {
	case rec.LockedAt(now):
		return &domain.LockStatus{
			Locked:           true,
			RemainingSeconds: remainingSeconds(*rec.LockedUntil, now),
			Attempts:         rec.Attempts,
		}, nil
	case rec.ExpiredAt(now):
		// Only the record we read goes; a concurrent fresh failure survives
		if _, err := s.kv.CompareAndDelete(ctx, storeKey, raw); err != nil {
			return nil, fmt.Errorf("clear expired lockout: %w", err)
		}
		return &domain.LockStatus{}, nil
	}
	return &domain.LockStatus{Attempts: rec.Attempts}, nil
}

// RecordFailure increments the counter for key and locks it at the threshold.
// The read-increment-write runs as a CAS loop so concurrent failures on the
// same key are never lost.
func (s *LockoutService) RecordFailure(ctx context.Context, key string) (*domain.LockoutRecord, error) {
	storeKey := lockoutKeyPrefix + key

	for i := 0; i < maxCASRetries; i++ {
		now := s.clock.Now()

		raw, current, err := s.load(ctx, storeKey)
		if err != nil {
			return nil, err
		}

		next := domain.LockoutRecord{}
		if current != nil {
			if current.LockedAt(now) {
				return current, nil
			}
			if !current.ExpiredAt(now) {
				next.Attempts = current.Attempts
			}
		}
		next.Attempts++

		var ttl time.Duration
		if next.Attempts >= s.cfg.MaxAttempts {
			until := now.Add(s.cfg.Duration)
			next.LockedUntil = &until
			ttl = s.cfg.Duration
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return nil, err
		}
		ok, err := s.kv.CompareAndSwap(ctx, storeKey, raw, encoded, ttl)
		if err != nil {
			return nil, fmt.Errorf("record failure: %w", err)
		}
		if ok {
			if next.LockedUntil != nil {
				log.Printf("🔒 Lockout engaged for %s after %d failures", key, next.Attempts)
			}
			return &next, nil
		}
	}
	return nil, ErrStateContention
}

// Clear removes the record for key
func (s *LockoutService) Clear(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, lockoutKeyPrefix+key); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

// load returns the raw bytes and decoded record, or nils when absent
func (s *LockoutService) load(ctx context.Context, storeKey string) ([]byte, *domain.LockoutRecord, error) {
	raw, err := s.kv.Get(ctx, storeKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load lockout: %w", err)
	}

	var rec domain.LockoutRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode lockout: %w", err)
	}
	return raw, &rec, nil
}

func remainingSeconds(until, now time.Time) int {
	return int(math.Ceil(until.Sub(now).Seconds()))
}
