package store

// DataStore is the write interface used when persisting a resolution index.
// Both Store (direct SQLite) and BatchedStore (in-memory buffering for
// parallel indexing) implement it.
type DataStore interface {
	// Each insert returns the assigned ID and sets it on the record.
	InsertScope(scope *Scope) (int64, error)
	InsertDeclaration(d *Declaration) (int64, error)
	InsertReference(ref *Reference) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
