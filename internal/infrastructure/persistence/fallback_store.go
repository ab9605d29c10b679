package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Mode is the sync state of a FallbackStore
type Mode string

const (
	// ModeOnline means writes reach both stores
	ModeOnline Mode = "online"
	// ModeDegraded means the remote store failed and writes are local only
	ModeDegraded Mode = "degraded"
	// ModeLocal means there is no remote store to mirror
	ModeLocal Mode = "local"
)

// SyncStatus reports the state of a FallbackStore
type SyncStatus struct {
	Mode          Mode       `json:"mode"`
	LastError     string     `json:"lastError,omitempty"`
	DegradedSince *time.Time `json:"degradedSince,omitempty"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty"`
}

// ErrRemoteUnavailable is returned by Resync when the remote store cannot be reached
var ErrRemoteUnavailable = errors.New("remote store unavailable")

// FallbackStore writes every batch to the local store first and then to the
// remote store. A remote failure does not fail the write: the store switches to
// degraded mode and keeps working locally until Resync succeeds.
//
// The local store also keeps a sync state: whether it has ever been reconciled
// with the remote, and which collections were written that the remote has not
// seen. Only those collections are pushed on resync, so a collection that was
// never written locally cannot overwrite remote data.
type FallbackStore struct {
	remote    Store
	local     Store
	logger    *zap.Logger
	clock     shared.Clock
	opTimeout time.Duration

	// mu serializes writes and resync so a resync never interleaves with a batch.
	// It also guards tracked.
	mu      sync.Mutex
	tracked syncState
	state   sync.RWMutex
	status  SyncStatus
}

// syncState is stored as the single record of shared.CollectionSyncState in the
// local store
type syncState struct {
	// InStep is false until the local store has been reconciled with the remote once
	InStep bool `json:"inStep"`
	// Pending lists collections written locally that the remote has not seen
	Pending []shared.Collection `json:"pending,omitempty"`
}

func (st *syncState) addPending(batch shared.Batch) bool {
	added := false
	for _, c := range sortedCollections(batch) {
		if !slices.Contains(st.Pending, c) {
			st.Pending = append(st.Pending, c)
			added = true
		}
	}
	return added
}

// FallbackOption configures FallbackStore
type FallbackOption func(*FallbackStore)

// WithFallbackLogger sets the store logger
func WithFallbackLogger(logger *zap.Logger) FallbackOption {
	return func(s *FallbackStore) {
		s.logger = logger
	}
}

// WithOpTimeout bounds every remote call. Non-positive values keep the default.
func WithOpTimeout(d time.Duration) FallbackOption {
	return func(s *FallbackStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithFallbackClock overrides the time source
func WithFallbackClock(clock shared.Clock) FallbackOption {
	return func(s *FallbackStore) {
		s.clock = clock
	}
}

// NewFallbackStore creates the store and reconciles the two sides (see Resync).
// An unreachable remote starts the store in degraded mode rather than failing.
func NewFallbackStore(ctx context.Context, remote, local Store, opts ...FallbackOption) (*FallbackStore, error) {
	s := &FallbackStore{
		remote:    remote,
		local:     local,
		logger:    zap.NewNop(),
		clock:     shared.SystemClock,
		opTimeout: 5 * time.Second,
		status:    SyncStatus{Mode: ModeOnline},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("fallback_store")

	state, err := loadSyncState(ctx, local)
	if err != nil {
		return nil, fmt.Errorf("load local store: %w", err)
	}
	if state == nil {
		// A local copy without sync state was written by a run that did not keep
		// one; treat its non-empty collections as the newest data.
		snapshot, _, err := loadAll(ctx, local)
		if err != nil {
			return nil, fmt.Errorf("load local store: %w", err)
		}
		state = &syncState{}
		for _, c := range shared.Collections() {
			if len(snapshot[c]) > 0 {
				state.InStep = true
				state.Pending = append(state.Pending, c)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracked = *state
	if err := s.reconcile(ctx); err != nil {
		s.markDegraded(err)
	}
	return s, nil
}

// Load implements shared.CollectionStore. Reads come from the remote while online
// and from the local store while degraded.
func (s *FallbackStore) Load(ctx context.Context, collection shared.Collection) ([]json.RawMessage, error) {
	if s.Status().Mode == ModeOnline {
		rctx, cancel := context.WithTimeout(ctx, s.opTimeout)
		records, err := s.remote.Load(rctx, collection)
		cancel()
		if err == nil {
			return records, nil
		}
		s.markDegraded(err)
	}
	return s.local.Load(ctx, collection)
}

// Save implements shared.CollectionStore
func (s *FallbackStore) Save(ctx context.Context, collection shared.Collection, records []json.RawMessage) error {
	return s.SaveBatch(ctx, shared.Batch{collection: records})
}

// SaveBatch implements shared.CollectionStore. Only a local failure is returned.
func (s *FallbackStore) SaveBatch(ctx context.Context, batch shared.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status().Mode == ModeDegraded {
		next := s.tracked
		next.Pending = slices.Clone(s.tracked.Pending)
		next.addPending(batch)
		if err := s.local.SaveBatch(ctx, withSyncState(batch, next)); err != nil {
			return err
		}
		s.tracked = next
		return nil
	}

	if err := s.local.SaveBatch(ctx, batch); err != nil {
		return err
	}
	rctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.remote.SaveBatch(rctx, batch); err != nil {
		s.markDegraded(err)
		if s.tracked.addPending(batch) {
			s.saveSyncState(ctx)
		}
	}
	return nil
}

// Ping checks the local store; the remote side is reported by Status
func (s *FallbackStore) Ping(ctx context.Context) error {
	return s.local.Ping(ctx)
}

// Status returns the current sync state
func (s *FallbackStore) Status() SyncStatus {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.status
}

// Resync reconciles the two stores and leaves degraded mode.
//
// Collections written locally that the remote has not seen are pushed: they
// replace the remote copy when the local store was already in step with it
// (last write wins), and are merged by record id into the remote copy when the
// local store never saw it. Every other collection is copied from the remote
// into the local store.
func (s *FallbackStore) Resync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconcile(ctx); err != nil {
		s.recordError(err)
		return err
	}
	return nil
}

// Close closes both stores
func (s *FallbackStore) Close(ctx context.Context) error {
	var errs []error
	for _, store := range []Store{s.remote, s.local} {
		if c, ok := store.(Closer); ok {
			errs = append(errs, c.Close(ctx))
		}
	}
	return errors.Join(errs...)
}

// reconcile implements Resync; the caller holds mu
func (s *FallbackStore) reconcile(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.remote.Ping(rctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	mirror, _, err := loadAll(rctx, s.remote)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}

	outgoing := shared.Batch{}
	for _, c := range s.tracked.Pending {
		records, err := s.local.Load(ctx, c)
		if err != nil {
			return fmt.Errorf("load local store: %w", err)
		}
		if !s.tracked.InStep {
			records = mergeRecords(mirror[c], records)
		}
		outgoing[c] = records
		mirror[c] = records
	}
	if len(outgoing) > 0 {
		if err := s.remote.SaveBatch(rctx, outgoing); err != nil {
			return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
		}
	}

	next := syncState{InStep: true}
	if err := s.local.SaveBatch(ctx, withSyncState(mirror, next)); err != nil {
		return fmt.Errorf("mirror remote into local store: %w", err)
	}
	pushed := len(outgoing)
	s.tracked = next
	s.markOnline("Stores synchronized", pushed)
	return nil
}

// saveSyncState writes the sync state on its own. A failure is logged: the
// pending collections are still pushed on the next resync of this process.
func (s *FallbackStore) saveSyncState(ctx context.Context) {
	if err := s.local.SaveBatch(ctx, withSyncState(shared.Batch{}, s.tracked)); err != nil {
		s.logger.Warn("Failed to record pending collections", zap.Error(err))
	}
}

func (s *FallbackStore) markDegraded(err error) {
	s.state.Lock()
	defer s.state.Unlock()

	if s.status.Mode != ModeDegraded {
		now := s.clock()
		s.status.Mode = ModeDegraded
		s.status.DegradedSince = &now
		s.logger.Warn("Remote store unavailable, continuing with local store", zap.Error(err))
	}
	s.status.LastError = err.Error()
}

func (s *FallbackStore) recordError(err error) {
	s.state.Lock()
	defer s.state.Unlock()
	s.status.LastError = err.Error()
}

func (s *FallbackStore) markOnline(msg string, pushed int) {
	s.state.Lock()
	defer s.state.Unlock()

	now := s.clock()
	wasDegraded := s.status.Mode == ModeDegraded
	s.status = SyncStatus{Mode: ModeOnline, LastSyncAt: &now}
	if wasDegraded {
		s.logger.Info(msg, zap.Bool("recovered", true), zap.Int("pushed_collections", pushed))
		return
	}
	s.logger.Debug(msg, zap.Int("pushed_collections", pushed))
}

// loadAll reads every collection into a batch and reports whether all were empty
func loadAll(ctx context.Context, store shared.CollectionStore) (shared.Batch, bool, error) {
	batch := shared.Batch{}
	empty := true
	for _, c := range shared.Collections() {
		records, err := store.Load(ctx, c)
		if err != nil {
			return nil, false, err
		}
		if len(records) > 0 {
			empty = false
		}
		batch[c] = records
	}
	return batch, empty, nil
}

// loadSyncState returns nil when the local store holds no sync state
func loadSyncState(ctx context.Context, store shared.CollectionStore) (*syncState, error) {
	states, err := shared.LoadRecords[syncState](ctx, store, shared.CollectionSyncState)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, nil
	}
	return &states[0], nil
}

// withSyncState returns a copy of batch that also writes state
func withSyncState(batch shared.Batch, state syncState) shared.Batch {
	out := make(shared.Batch, len(batch)+1)
	for c, records := range batch {
		out[c] = records
	}
	doc, _ := json.Marshal(state)
	out[shared.CollectionSyncState] = []json.RawMessage{doc}
	return out
}

// mergeRecords adds local records to the remote ones. A local record replaces the
// remote record with the same key in place; the rest are appended in local order.
func mergeRecords(remote, local []json.RawMessage) []json.RawMessage {
	merged := slices.Clone(remote)
	index := make(map[string]int, len(merged))
	for i, doc := range merged {
		if key := recordKey(doc); key != "" {
			index[key] = i
		}
	}
	for _, doc := range local {
		key := recordKey(doc)
		if i, ok := index[key]; ok && key != "" {
			merged[i] = doc
			continue
		}
		if key != "" {
			index[key] = len(merged)
		}
		merged = append(merged, doc)
	}
	if merged == nil {
		merged = []json.RawMessage{}
	}
	return merged
}

// recordKey identifies a record in either store: its id, or its date for daily
// snapshots. Records with neither are never matched.
func recordKey(doc json.RawMessage) string {
	var keys struct {
		ID   string `json:"id"`
		Date string `json:"date"`
	}
	if err := json.Unmarshal(doc, &keys); err != nil {
		return ""
	}
	switch {
	case keys.ID != "":
		return "id:" + keys.ID
	case keys.Date != "":
		return "date:" + keys.Date
	}
	return ""
}
