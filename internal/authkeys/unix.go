package authkeys

import (
	"errors"
	"io"
	"iter"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/pmork/gatekeep/internal/privs"
	"github.com/pmork/gatekeep/internal/userdb"
)

// AccountLookup resolves a username to its passwd record. *userdb.DB
// satisfies it.
type AccountLookup interface {
	LookupUser(name string) (*userdb.User, error)
}

// UnixUserKeys serves keys from <home>/.ssh/authorized_keys and
// <home>/.ssh/authorized_keys2, resolving the home directory through the
// account database. When the invoking process cannot read a key file
// directly, it is reopened as the target user.
type UnixUserKeys struct {
	db AccountLookup
	id privs.Identity
}

// NewUnixUserKeys builds a source over the account database. id is used for
// the reopen-as-owner fallback, normally privs.OS().
func NewUnixUserKeys(db AccountLookup, id privs.Identity) *UnixUserKeys {
	return &UnixUserKeys{db: db, id: id}
}

// AuthorizedKeys yields the user's keys. Users absent from the account
// database yield an empty sequence.
func (u *UnixUserKeys) AuthorizedKeys(username string) (iter.Seq[ssh.PublicKey], error) {
	account, err := u.db.LookupUser(username)
	if err != nil {
		if errors.Is(err, userdb.ErrUnknownUser) {
			return func(yield func(ssh.PublicKey) bool) {}, nil
		}
		return nil, err
	}

	paths := []string{
		filepath.Join(account.Home, ".ssh", "authorized_keys"),
		filepath.Join(account.Home, ".ssh", "authorized_keys2"),
	}
	open := func(p string) (io.ReadCloser, error) {
		return privs.OpenAsUser(u.id, p, account.UID, account.GID)
	}
	return keysFromPaths(paths, open), nil
}
