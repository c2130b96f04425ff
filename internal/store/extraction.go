package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, language, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Language, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = `id, path, language, hash, line_count, last_indexed`

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	return f, scanner.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed)
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	return s.queryFiles("SELECT " + fileCols + " FROM files ORDER BY path")
}

func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	return s.queryFiles("SELECT "+fileCols+" FROM files WHERE language = ? ORDER BY path", language)
}

// Languages returns the distinct languages of indexed files.
func (s *Store) Languages() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT language FROM files ORDER BY language")
	if err != nil {
		return nil, fmt.Errorf("languages: %w", err)
	}
	defer rows.Close()
	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}

// --- Scope operations ---

func (s *Store) InsertScope(scope *Scope) (int64, error) {
	id, err := insertScopeTx(s.db, scope)
	if err != nil {
		return 0, fmt.Errorf("insert scope: %w", err)
	}
	scope.ID = id
	return id, nil
}

const scopeCols = `id, file_id, parent_scope_id, label, depth, hoist, opaque,
	start_line, start_col, end_line, end_col`

func scanScope(scanner interface{ Scan(...any) error }) (*Scope, error) {
	sc := &Scope{}
	return sc, scanner.Scan(
		&sc.ID, &sc.FileID, &sc.ParentScopeID, &sc.Label, &sc.Depth, &sc.Hoist, &sc.Opaque,
		&sc.StartLine, &sc.StartCol, &sc.EndLine, &sc.EndCol,
	)
}

func (s *Store) queryScopes(query string, args ...any) ([]*Scope, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scopes []*Scope
	for rows.Next() {
		sc, err := scanScope(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

// ScopesByFile returns the scopes of a file in pre-order.
func (s *Store) ScopesByFile(fileID int64) ([]*Scope, error) {
	scopes, err := s.queryScopes("SELECT "+scopeCols+" FROM scopes WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("scopes by file: %w", err)
	}
	return scopes, nil
}

func (s *Store) ScopeByID(id int64) (*Scope, error) {
	sc, err := scanScope(s.db.QueryRow("SELECT "+scopeCols+" FROM scopes WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scope by id: %w", err)
	}
	return sc, nil
}

// ScopeChain walks up the parent_scope_id chain from scopeID to the file scope.
func (s *Store) ScopeChain(scopeID int64) ([]*Scope, error) {
	var chain []*Scope
	currentID := &scopeID
	for currentID != nil {
		sc, err := s.ScopeByID(*currentID)
		if err != nil {
			return nil, fmt.Errorf("scope chain: %w", err)
		}
		if sc == nil {
			break
		}
		chain = append(chain, sc)
		currentID = sc.ParentScopeID
	}
	return chain, nil
}

// --- Declaration operations ---

func (s *Store) InsertDeclaration(d *Declaration) (int64, error) {
	id, err := insertDeclarationTx(s.db, d)
	if err != nil {
		return 0, fmt.Errorf("insert declaration: %w", err)
	}
	d.ID = id
	return id, nil
}

const declarationCols = `id, file_id, scope_id, name, tag, visibility, point,
	start_line, start_col, end_line, end_col`

func scanDeclaration(scanner interface{ Scan(...any) error }) (*Declaration, error) {
	d := &Declaration{}
	var tag sql.NullString
	err := scanner.Scan(
		&d.ID, &d.FileID, &d.ScopeID, &d.Name, &tag, &d.Visibility, &d.Point,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol,
	)
	d.Tag = tag.String
	return d, err
}

func (s *Store) queryDeclarations(query string, args ...any) ([]*Declaration, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var decls []*Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

func (s *Store) DeclarationByID(id int64) (*Declaration, error) {
	d, err := scanDeclaration(s.db.QueryRow("SELECT "+declarationCols+" FROM declarations WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("declaration by id: %w", err)
	}
	return d, nil
}

// DeclarationsByFile returns the declarations of a file in source order.
func (s *Store) DeclarationsByFile(fileID int64) ([]*Declaration, error) {
	return s.queryDeclarations(
		"SELECT "+declarationCols+" FROM declarations WHERE file_id = ? ORDER BY start_line, start_col", fileID)
}

// DeclarationsInScope returns the declarations owned by a scope in the
// order they were registered.
func (s *Store) DeclarationsInScope(scopeID int64) ([]*Declaration, error) {
	return s.queryDeclarations(
		"SELECT "+declarationCols+" FROM declarations WHERE scope_id = ? ORDER BY id", scopeID)
}

func (s *Store) DeclarationsByName(name string) ([]*Declaration, error) {
	return s.queryDeclarations(
		"SELECT "+declarationCols+" FROM declarations WHERE name = ? ORDER BY file_id, start_line, start_col", name)
}

// --- Reference operations ---

func (s *Store) InsertReference(ref *Reference) (int64, error) {
	id, err := insertReferenceTx(s.db, ref)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	ref.ID = id
	return id, nil
}

const referenceCols = `id, file_id, scope_id, declaration_id, name, class,
	start_line, start_col, end_line, end_col`

func scanReference(scanner interface{ Scan(...any) error }) (*Reference, error) {
	r := &Reference{}
	return r, scanner.Scan(
		&r.ID, &r.FileID, &r.ScopeID, &r.DeclarationID, &r.Name, &r.Class,
		&r.StartLine, &r.StartCol, &r.EndLine, &r.EndCol,
	)
}

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		r, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// ReferencesByFile returns the references of a file in source order.
func (s *Store) ReferencesByFile(fileID int64) ([]*Reference, error) {
	return s.queryReferences(
		"SELECT "+referenceCols+" FROM references_ WHERE file_id = ? ORDER BY start_line, start_col", fileID)
}

func (s *Store) ReferencesByName(name string) ([]*Reference, error) {
	return s.queryReferences(
		"SELECT "+referenceCols+" FROM references_ WHERE name = ? ORDER BY file_id, start_line, start_col", name)
}

// --- Diagnostic operations ---

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	id, err := insertDiagnosticTx(s.db, d)
	if err != nil {
		return 0, fmt.Errorf("insert diagnostic: %w", err)
	}
	d.ID = id
	return id, nil
}

func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, kind, message, line, col FROM diagnostics WHERE file_id = ? ORDER BY line, col", fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by file: %w", err)
	}
	defer rows.Close()
	var diags []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		if err := rows.Scan(&d.ID, &d.FileID, &d.Kind, &d.Message, &d.Line, &d.Col); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}
