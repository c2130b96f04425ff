package store

import "fmt"

// InvalidateLanguages clears the content hash of every file written in one
// of languages, so the next indexing run resolves them again even though
// their contents did not change. It returns the number of files affected.
func (s *Store) InvalidateLanguages(languages []string) (int64, error) {
	if len(languages) == 0 {
		return 0, nil
	}
	res, err := s.db.Exec(
		"UPDATE files SET hash = '' WHERE language IN ("+placeholderList(len(languages))+")",
		stringsToArgs(languages)...,
	)
	if err != nil {
		return 0, fmt.Errorf("invalidate languages: %w", err)
	}
	return res.RowsAffected()
}

// DeleteFiles removes the given files and all of their resolution data in
// one transaction.
func (s *Store) DeleteFiles(fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := placeholderList(len(fileIDs))
	args := int64sToArgs(fileIDs)
	for _, q := range []string{
		"DELETE FROM diagnostics WHERE file_id IN (" + placeholders + ")",
		"DELETE FROM references_ WHERE file_id IN (" + placeholders + ")",
		"DELETE FROM declarations WHERE file_id IN (" + placeholders + ")",
		"DELETE FROM scopes WHERE file_id IN (" + placeholders + ")",
		"DELETE FROM files WHERE id IN (" + placeholders + ")",
	} {
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("delete files: %w", err)
		}
	}
	return tx.Commit()
}
