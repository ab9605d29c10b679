package shared

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection names a persisted record collection
type Collection string

const (
	CollectionStock        Collection = "stock"
	CollectionPurchases    Collection = "purchases"
	CollectionDeletedSales Collection = "deletedSales"
	CollectionReversals    Collection = "reversals"
	CollectionDebtors      Collection = "debtors"
	CollectionPaidDebtors  Collection = "paidDebtors"
	CollectionAnalytics    Collection = "analytics"

	// CollectionSyncState is bookkeeping kept by the local side of a fallback store.
	// It is not a ledger collection and is never copied to the remote.
	CollectionSyncState Collection = "syncState"
)

// Collections returns every collection the ledgers persist
func Collections() []Collection {
	return []Collection{
		CollectionStock,
		CollectionPurchases,
		CollectionDeletedSales,
		CollectionReversals,
		CollectionDebtors,
		CollectionPaidDebtors,
		CollectionAnalytics,
	}
}

// IsValid checks if the collection name is known
func (c Collection) IsValid() bool {
	if c == CollectionSyncState {
		return true
	}
	for _, known := range Collections() {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the string representation
func (c Collection) String() string {
	return string(c)
}

// Batch holds whole-collection replacements that must be written together
type Batch map[Collection][]json.RawMessage

// CollectionStore is the persistence collaborator behind every ledger.
// Load returns an empty slice, not an error, for a collection that was never saved.
// Save and SaveBatch replace the full contents of each named collection.
type CollectionStore interface {
	Load(ctx context.Context, collection Collection) ([]json.RawMessage, error)
	Save(ctx context.Context, collection Collection, records []json.RawMessage) error
	SaveBatch(ctx context.Context, batch Batch) error
}

// Locker hands out critical sections shared by every process that uses the same
// store. The returned release function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LoadRecords loads a collection and decodes each document into T
func LoadRecords[T any](ctx context.Context, store CollectionStore, collection Collection) ([]T, error) {
	raw, err := store.Load(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	records := make([]T, 0, len(raw))
	for i, doc := range raw {
		var record T
		if err := json.Unmarshal(doc, &record); err != nil {
			return nil, fmt.Errorf("decode %s[%d]: %w", collection, i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// EncodeRecords encodes records into raw documents
func EncodeRecords[T any](records []T) ([]json.RawMessage, error) {
	docs := make([]json.RawMessage, 0, len(records))
	for _, record := range records {
		doc, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// PutRecords encodes records into the batch under collection
func PutRecords[T any](batch Batch, collection Collection, records []T) error {
	docs, err := EncodeRecords(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	batch[collection] = docs
	return nil
}
