package schema

import "time"

// SyncMeta carries the sync-provenance state of a mirrored record.
//
// The flags are stamped by the mirror store's write path, never by callers.
// LocallyCreated/LocallyUpdated/LocallyDeleted are provenance history and
// survive a successful push; only SyncPending gates whether an incoming pull
// may overwrite the record.
type SyncMeta struct {
	// LocallyCreated is true if the record originated from a local write
	// that has not yet been confirmed created remotely.
	LocallyCreated bool `json:"-"`

	// LocallyUpdated is true if a remotely-known record has unconfirmed
	// local edits.
	LocallyUpdated bool `json:"-"`

	// LocallyDeleted is true if the record is marked for remote deletion
	// but not yet purged from the mirror.
	LocallyDeleted bool `json:"-"`

	// SyncPending is true while any local write is unacknowledged by the
	// remote service. A pending record must never be overwritten by a pull.
	SyncPending bool `json:"-"`

	// LastSyncAttempt is the last time a push or pull touched this record.
	LastSyncAttempt time.Time `json:"-"`

	// SyncAttempts counts consecutive failed push attempts. Reset to zero
	// when the record is acknowledged.
	SyncAttempts int `json:"-"`
}

// Entity is implemented by all synchronizable record types.
//
// IDs are client-generated at creation time and immutable; the remote
// service never assigns them.
type Entity interface {
	GetID() string
	SetID(id string)
	SyncState() *SyncMeta
}
