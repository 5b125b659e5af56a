package authkeys

import (
	"io"
	"iter"
	"os"

	"golang.org/x/crypto/ssh"
)

// FilesMapping serves authorized keys from a mapping of username to
// authorized_keys file paths. Results concatenate in path order, then
// per-file line order. Missing or unreadable paths are skipped.
type FilesMapping struct {
	paths map[string][]string
}

// NewFilesMapping wraps a username-to-paths mapping.
func NewFilesMapping(paths map[string][]string) *FilesMapping {
	return &FilesMapping{paths: paths}
}

// AuthorizedKeys yields the keys found in username's files. Files are opened
// lazily, one at a time, as the sequence is consumed.
func (m *FilesMapping) AuthorizedKeys(username string) (iter.Seq[ssh.PublicKey], error) {
	paths := m.paths[username]
	return keysFromPaths(paths, func(p string) (io.ReadCloser, error) {
		return os.Open(p)
	}), nil
}
