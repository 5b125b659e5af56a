// Package userdb resolves accounts against /etc/passwd- and /etc/shadow-
// style databases. Lookups are read-only snapshots; the shadow database is
// read with the effective uid raised to 0 and restored before returning.
package userdb

import (
	"errors"
	"fmt"
	"os"

	"github.com/pmork/gatekeep/internal/privs"
)

// ErrUnknownUser means the user is absent from the database, or the database
// itself is unavailable on this host. It is an expected lookup outcome, not
// a failure.
var ErrUnknownUser = errors.New("unknown user")

// DB reads account records from passwd/shadow files.
type DB struct {
	passwdPath string
	shadowPath string
	id         privs.Identity
}

// Open returns a DB over the given file paths. An empty shadowPath means the
// host has no shadow facility; shadow lookups then report ErrUnknownUser
// without any privilege switch. id is the identity used to raise privileges
// for the shadow read, normally privs.OS().
func Open(passwdPath, shadowPath string, id privs.Identity) *DB {
	return &DB{passwdPath: passwdPath, shadowPath: shadowPath, id: id}
}

// LookupUser finds name in the passwd database. The database is
// world-readable, so no privilege switch happens here.
func (db *DB) LookupUser(name string) (*User, error) {
	data, err := os.ReadFile(db.passwdPath)
	if err != nil {
		return nil, ErrUnknownUser
	}
	u := findPasswd(data, name)
	if u == nil {
		return nil, ErrUnknownUser
	}
	return u, nil
}

// LookupShadow finds name in the shadow database. The read runs with the
// effective uid raised to 0; the prior identity is restored before
// LookupShadow returns, whether or not the read succeeded.
func (db *DB) LookupShadow(name string) (*Shadow, error) {
	if db.shadowPath == "" {
		return nil, ErrUnknownUser
	}

	var data []byte
	err := privs.RunAs(db.id, 0, 0, func() error {
		var readErr error
		data, readErr = os.ReadFile(db.shadowPath)
		return readErr
	})
	if err != nil {
		return nil, fmt.Errorf("read shadow database: %w", err)
	}

	s := findShadow(data, name)
	if s == nil {
		return nil, ErrUnknownUser
	}
	return s, nil
}
