package store

import (
	"database/sql"
	"fmt"
)

// OccurrenceAt returns the declaration or reference whose name covers the
// zero-based position (line, col) of a file, or nil if none does.
func (s *Store) OccurrenceAt(fileID int64, line, col int) (*Occurrence, error) {
	d, err := scanDeclaration(s.db.QueryRow(
		"SELECT "+declarationCols+` FROM declarations
		 WHERE file_id = ? AND start_line = ? AND start_col <= ? AND ? < end_col
		 LIMIT 1`,
		fileID, line, col, col,
	))
	switch {
	case err == nil:
		return &Occurrence{Declaration: d}, nil
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("declaration at %d:%d: %w", line, col, err)
	}

	r, err := scanReference(s.db.QueryRow(
		"SELECT "+referenceCols+` FROM references_
		 WHERE file_id = ? AND start_line = ? AND start_col <= ? AND ? < end_col
		 LIMIT 1`,
		fileID, line, col, col,
	))
	switch {
	case err == nil:
		return &Occurrence{Reference: r}, nil
	case err == sql.ErrNoRows:
		return nil, nil
	default:
		return nil, fmt.Errorf("reference at %d:%d: %w", line, col, err)
	}
}

// ReferencesToDeclaration returns the references bound to a declaration in
// source order.
func (s *Store) ReferencesToDeclaration(declID int64) ([]*Reference, error) {
	return s.queryReferences(
		"SELECT "+referenceCols+" FROM references_ WHERE declaration_id = ? ORDER BY start_line, start_col", declID)
}

// UnboundReferences returns the references of a file that no declaration
// in the file binds, in source order.
func (s *Store) UnboundReferences(fileID int64) ([]*Reference, error) {
	return s.queryReferences(
		"SELECT "+referenceCols+` FROM references_
		 WHERE file_id = ? AND declaration_id IS NULL ORDER BY start_line, start_col`, fileID)
}

// ClassCounts returns the number of references of each class across all
// files, plus the number of declarations under "declaration".
func (s *Store) ClassCounts() (map[string]int, error) {
	counts := make(map[string]int)
	rows, err := s.db.Query("SELECT class, COUNT(*) FROM references_ GROUP BY class")
	if err != nil {
		return nil, fmt.Errorf("class counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("scan class count: %w", err)
		}
		counts[class] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var decls int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM declarations").Scan(&decls); err != nil {
		return nil, fmt.Errorf("count declarations: %w", err)
	}
	counts["declaration"] = decls
	return counts, nil
}
