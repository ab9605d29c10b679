package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Blob stores one opaque document
type Blob interface {
	// Read returns nil data, not an error, when the document does not exist yet
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
}

// snapshotDocument is the on-blob format: every collection in one JSON document
type snapshotDocument struct {
	Version     int                                     `json:"version"`
	UpdatedAt   time.Time                               `json:"updatedAt"`
	Collections map[shared.Collection][]json.RawMessage `json:"collections"`
}

const snapshotVersion = 1

// SnapshotStore keeps all collections in a single document on a Blob.
// The document is read once and cached; every write rewrites the whole document,
// so a batch is atomic as long as the blob write is.
type SnapshotStore struct {
	blob   Blob
	logger *zap.Logger
	clock  shared.Clock

	mu     sync.Mutex
	loaded bool
	data   map[shared.Collection][]json.RawMessage
}

// SnapshotStoreOption configures SnapshotStore
type SnapshotStoreOption func(*SnapshotStore)

// WithSnapshotLogger sets the store logger
func WithSnapshotLogger(logger *zap.Logger) SnapshotStoreOption {
	return func(s *SnapshotStore) {
		s.logger = logger
	}
}

// NewSnapshotStore creates a SnapshotStore over blob
func NewSnapshotStore(blob Blob, opts ...SnapshotStoreOption) *SnapshotStore {
	s := &SnapshotStore{
		blob:   blob,
		logger: zap.NewNop(),
		clock:  shared.SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements shared.CollectionStore
func (s *SnapshotStore) Load(ctx context.Context, collection shared.Collection) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return cloneRecords(s.data[collection]), nil
}

// Save implements shared.CollectionStore
func (s *SnapshotStore) Save(ctx context.Context, collection shared.Collection, records []json.RawMessage) error {
	return s.SaveBatch(ctx, shared.Batch{collection: records})
}

// SaveBatch implements shared.CollectionStore
func (s *SnapshotStore) SaveBatch(ctx context.Context, batch shared.Batch) error {
	if err := validateBatch(batch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	next := make(map[shared.Collection][]json.RawMessage, len(s.data)+len(batch))
	for c, records := range s.data {
		next[c] = records
	}
	for c, records := range batch {
		next[c] = cloneRecords(records)
	}

	data, err := json.Marshal(snapshotDocument{
		Version:     snapshotVersion,
		UpdatedAt:   s.clock().UTC(),
		Collections: next,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.blob.Write(ctx, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.data = next
	return nil
}

// Ping checks the blob backend
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.blob.Ping(ctx)
}

func (s *SnapshotStore) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	raw, err := s.blob.Read(ctx)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	data := make(map[shared.Collection][]json.RawMessage)
	if len(raw) > 0 {
		var doc snapshotDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		if doc.Version > snapshotVersion {
			return fmt.Errorf("snapshot version %d is newer than supported version %d", doc.Version, snapshotVersion)
		}
		for c, records := range doc.Collections {
			if !c.IsValid() {
				s.logger.Warn("Ignoring unknown collection in snapshot", zap.String("collection", c.String()))
				continue
			}
			data[c] = records
		}
	}

	s.data = data
	s.loaded = true
	return nil
}
