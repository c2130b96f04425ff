package store

import (
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// (positive, AUTOINCREMENT) IDs, and all FK references within the batch
// are rewritten using the fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Scopes (depend on file_id and parent_scope_id)
//  2. Declarations (depend on scope_id)
//  3. References (depend on scope_id and declaration_id)
//  4. Diagnostics (depend on file_id only)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("fake id %d not in batch", id)
		}
		return realID, nil
	}

	// 1. Scopes
	for _, scope := range batch.Scopes {
		if scope.ParentScopeID != nil {
			realID, err := remap(*scope.ParentScopeID)
			if err != nil {
				return fmt.Errorf("commit batch: scope %q parent: %w", scope.Label, err)
			}
			scope.ParentScopeID = &realID
		}
		realID, err := insertScopeTx(tx, &scope)
		if err != nil {
			return fmt.Errorf("commit batch: scope %q: %w", scope.Label, err)
		}
		fakeToReal[scope.ID] = realID
	}

	// 2. Declarations
	for _, d := range batch.Declarations {
		if d.ScopeID, err = remap(d.ScopeID); err != nil {
			return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
		}
		realID, err := insertDeclarationTx(tx, &d)
		if err != nil {
			return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
		}
		fakeToReal[d.ID] = realID
	}

	// 3. References
	for _, ref := range batch.References {
		if ref.ScopeID, err = remap(ref.ScopeID); err != nil {
			return fmt.Errorf("commit batch: reference %q: %w", ref.Name, err)
		}
		if ref.DeclarationID != nil {
			realID, err := remap(*ref.DeclarationID)
			if err != nil {
				return fmt.Errorf("commit batch: reference %q: %w", ref.Name, err)
			}
			ref.DeclarationID = &realID
		}
		realID, err := insertReferenceTx(tx, &ref)
		if err != nil {
			return fmt.Errorf("commit batch: reference %q: %w", ref.Name, err)
		}
		fakeToReal[ref.ID] = realID
	}

	// 4. Diagnostics
	for _, d := range batch.Diagnostics {
		realID, err := insertDiagnosticTx(tx, &d)
		if err != nil {
			return fmt.Errorf("commit batch: diagnostic %q: %w", d.Kind, err)
		}
		fakeToReal[d.ID] = realID
	}

	return tx.Commit()
}

// --- Insert helpers ---
// Shared by the Store insert methods and CommitBatch; ex is either the
// *sql.DB or the batch transaction.

func insertScopeTx(ex execer, scope *Scope) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO scopes (file_id, parent_scope_id, label, depth, hoist, opaque,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scope.FileID, scope.ParentScopeID, scope.Label, scope.Depth, scope.Hoist, scope.Opaque,
		scope.StartLine, scope.StartCol, scope.EndLine, scope.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertDeclarationTx(ex execer, d *Declaration) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO declarations (file_id, scope_id, name, tag, visibility, point,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.ScopeID, d.Name, nullString(d.Tag), d.Visibility, d.Point,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertReferenceTx(ex execer, ref *Reference) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO references_ (file_id, scope_id, declaration_id, name, class,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.FileID, ref.ScopeID, ref.DeclarationID, ref.Name, ref.Class,
		ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertDiagnosticTx(ex execer, d *Diagnostic) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO diagnostics (file_id, kind, message, line, col) VALUES (?, ?, ?, ?, ?)`,
		d.FileID, d.Kind, d.Message, d.Line, d.Col,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
