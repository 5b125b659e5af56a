// Package authkeys provides sources of authorized public keys for a
// username: an in-memory mapping, a username-to-files mapping, and the
// classic ~/.ssh/authorized_keys layout driven by the account database.
package authkeys

import (
	"bufio"
	"io"
	"iter"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Source yields the public keys authorized for a username. The sequence is
// finite, produced lazily, and fresh on every call. Sources swallow
// unreadable files and unparsable lines, yielding fewer keys instead of
// failing; the error return exists for source implementations backed by
// fallible stores.
type Source interface {
	AuthorizedKeys(username string) (iter.Seq[ssh.PublicKey], error)
}

// scanKeys parses one authorized_keys stream, yielding each parsable key.
// Blank lines and lines whose first non-whitespace character is '#' are
// ignored, as are lines that fail to parse. Returns false if the consumer
// stopped early.
func scanKeys(r io.Reader, yield func(ssh.PublicKey) bool) bool {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			continue
		}
		if !yield(key) {
			return false
		}
	}
	return true
}

// keysFromPaths yields keys from each path in order, file order first, then
// line order within a file. Paths that fail to open are skipped.
func keysFromPaths(paths []string, open func(string) (io.ReadCloser, error)) iter.Seq[ssh.PublicKey] {
	return func(yield func(ssh.PublicKey) bool) {
		for _, p := range paths {
			f, err := open(p)
			if err != nil {
				continue
			}
			more := scanKeys(f, yield)
			f.Close()
			if !more {
				return
			}
		}
	}
}
