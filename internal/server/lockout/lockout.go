// Package lockout counts failed credential exchanges per username and
// temporarily locks a username once a threshold is reached.
package lockout

import (
	"context"
	"time"
)

// State is the failure record of a single username.
type State struct {
	FailedCount int
	LockedUntil *time.Time
}

// Locked reports whether the lock is still in force at now.
func (s State) Locked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

type Store interface {
	Get(ctx context.Context, username string) (State, error)
	RecordFailure(ctx context.Context, username string, now time.Time) (State, error)
	Clear(ctx context.Context, username string) error
}

// NoopStore never locks anyone. It is used when no Redis address is configured.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) (State, error) { return State{}, nil }

func (NoopStore) RecordFailure(context.Context, string, time.Time) (State, error) {
	return State{}, nil
}

func (NoopStore) Clear(context.Context, string) error { return nil }
