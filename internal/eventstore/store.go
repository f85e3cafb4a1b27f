package eventstore

import (
	"context"
	"time"
)

// Store persists release journal events and the per-version run lock.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, e Event) error

	// ByRun retrieves all events of one run in append order.
	ByRun(ctx context.Context, runID string) ([]Event, error)

	// ByVersion retrieves all events recorded for a version across runs.
	ByVersion(ctx context.Context, version string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// AcquireLock marks version as in progress for runID. It fails with
	// *LockedError while another run holds the lock.
	AcquireLock(ctx context.Context, version, runID string) error

	// ReleaseLock releases the lock held by runID. Releasing a lock held by
	// another run is a no-op.
	ReleaseLock(ctx context.Context, version, runID string) error

	// ForceUnlock drops the lock for version regardless of owner.
	ForceUnlock(ctx context.Context, version string) error

	// Close closes the store and releases resources.
	Close() error
}
