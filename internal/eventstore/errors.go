package eventstore

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.JournalError("could not open release journal").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.JournalError("failed to initialize release journal schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = errors.JournalError("failed to append event to journal").Build()

	// ErrEventQueryFailed indicates querying events failed.
	ErrEventQueryFailed = errors.JournalError("failed to query events from journal").Build()

	// ErrMarshalPayloadFailed indicates JSON marshaling of event payload failed.
	ErrMarshalPayloadFailed = errors.JournalError("failed to marshal event payload").Build()
)

// LockedError reports that another run holds the lock for a version.
type LockedError struct {
	Version string
	RunID   string
	Since   time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("release %s is already in progress (run %s since %s)",
		e.Version, e.RunID, e.Since.UTC().Format(time.RFC3339))
}
