// Package gateway defines the logical operations the sync core needs from
// the hosted database, and ships two implementations: a remote client over
// the libSQL driver and an in-memory gateway for tests and local
// development.
package gateway

import "context"

// Gateway is the remote-database collaborator consumed by the sync core.
//
// Implementations own their transport concerns (auth, timeouts, retries at
// the connection level); the sync core treats every returned error as a
// transient remote failure and leaves the affected record pending.
type Gateway interface {
	// Insert creates a record. The document carries the client-generated
	// id. Re-inserting an id already present must succeed by replacing
	// the stored document, so an acknowledged-but-lost insert converges
	// on retry.
	Insert(ctx context.Context, table string, doc map[string]any) error

	// Update merges partial fields into an existing record.
	Update(ctx context.Context, table, id string, partial map[string]any) error

	// Delete removes a record. Deleting an absent id is not an error.
	Delete(ctx context.Context, table, id string) error

	// SelectAll fetches the full current contents of a table.
	SelectAll(ctx context.Context, table string) ([]map[string]any, error)
}
