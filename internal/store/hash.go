package store

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash returns the hex SHA-256 of a file's contents. A file whose
// stored hash matches is not resolved again.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// descriptorKey is the metadata key holding the descriptor fingerprint a
// language's files were last resolved with.
func descriptorKey(language string) string {
	return "descriptor:" + language
}

// DescriptorFingerprint returns the fingerprint recorded for language, or ""
// if none was recorded.
func (s *Store) DescriptorFingerprint(language string) (string, error) {
	return s.GetMetadata(descriptorKey(language))
}

// SetDescriptorFingerprint records the fingerprint language's files are now
// resolved with.
func (s *Store) SetDescriptorFingerprint(language, fingerprint string) error {
	return s.SetMetadata(descriptorKey(language), fingerprint)
}
