package store

import "sync"

// BatchedStore buffers index rows in memory using fake (negative) IDs. It
// implements DataStore so WriteIndex can fill it from a worker goroutine
// while a single writer commits finished batches with CommitBatch.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
type BatchedStore struct {
	mu sync.Mutex

	Scopes       []Scope
	Declarations []Declaration
	References   []Reference
	Diagnostics  []Diagnostic

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates an empty BatchedStore.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{nextFakeID: -1}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertScope(scope *Scope) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	scope.ID = fakeID
	b.Scopes = append(b.Scopes, *scope)
	return fakeID, nil
}

func (b *BatchedStore) InsertDeclaration(d *Declaration) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Declarations = append(b.Declarations, *d)
	return fakeID, nil
}

func (b *BatchedStore) InsertReference(ref *Reference) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	ref.ID = fakeID
	b.References = append(b.References, *ref)
	return fakeID, nil
}

func (b *BatchedStore) InsertDiagnostic(d *Diagnostic) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Diagnostics = append(b.Diagnostics, *d)
	return fakeID, nil
}

// Len reports the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Scopes) + len(b.Declarations) + len(b.References) + len(b.Diagnostics)
}
