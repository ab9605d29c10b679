// Package persistence implements the collection stores behind the ledgers:
// in-memory, single-document snapshots (local file or S3), gorm (postgres,
// sqlite), MongoDB, and the fallback store that keeps a local copy while the
// remote store is unreachable.
package persistence

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/cas-inventory/backend/internal/domain/shared"
)

// Store is a collection store that can check its backend's health
type Store interface {
	shared.CollectionStore
	Ping(ctx context.Context) error
}

// Closer is implemented by stores that hold connections
type Closer interface {
	Close(ctx context.Context) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SnapshotStore)(nil)
	_ Store = (*GormStore)(nil)
	_ Store = (*MongoStore)(nil)
	_ Store = (*FallbackStore)(nil)
	_ Store = (*reconnectingStore)(nil)

	_ Syncer = (*FallbackStore)(nil)
)

// cloneRecords copies the slice and every document so callers cannot alias stored bytes
func cloneRecords(records []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(records))
	for i, doc := range records {
		out[i] = slices.Clone(doc)
	}
	return out
}

// sortedCollections returns the batch's collections in a stable order
func sortedCollections(batch shared.Batch) []shared.Collection {
	names := make([]shared.Collection, 0, len(batch))
	for c := range batch {
		names = append(names, c)
	}
	slices.Sort(names)
	return names
}

func validateBatch(batch shared.Batch) error {
	for c := range batch {
		if !c.IsValid() {
			return shared.NewValidationError("unknown collection %q", c)
		}
	}
	return nil
}
