package checkers

import (
	"context"
	"errors"
	"log"
	"slices"

	"github.com/pmork/gatekeep/internal/creds"
	"github.com/pmork/gatekeep/internal/passhash"
	"github.com/pmork/gatekeep/internal/userdb"
)

// DefaultSentinels are the conventional "look elsewhere for the password"
// hash values found in /etc/passwd entries.
var DefaultSentinels = []string{"", "x", "*"}

// LookupFunc resolves a username to the account name and password hash of
// one identity source. It reports userdb.ErrUnknownUser when the user is
// absent from that source.
type LookupFunc func(username string) (name, hash string, err error)

// PasswordChecker verifies username/password credentials against an ordered
// list of identity sources, falling through sources in the way real account
// databases chain /etc/passwd to /etc/shadow.
type PasswordChecker struct {
	// Lookups are consulted in order until one yields a matching hash.
	Lookups []LookupFunc

	// Sentinels are hash values that mean "consult the next source".
	// They never match a submitted password, not even literally.
	// Nil means DefaultSentinels.
	Sentinels []string

	// Verify checks a plaintext password against a hash. Nil means
	// passhash.Verify.
	Verify func(hash, password string) bool

	// HostFallback, when set, is asked to verify the password whenever a
	// source yields a hash scheme Verify cannot derive (passhash.Unsupported).
	HostFallback func(username, password string) (bool, error)
}

// NewPasswordChecker builds a checker with the default lookup order:
// the account database, then the shadow database.
func NewPasswordChecker(db *userdb.DB) *PasswordChecker {
	return &PasswordChecker{
		Lookups: []LookupFunc{
			func(name string) (string, string, error) {
				u, err := db.LookupUser(name)
				if err != nil {
					return "", "", err
				}
				return u.Name, u.Passwd, nil
			},
			func(name string) (string, string, error) {
				s, err := db.LookupShadow(name)
				if err != nil {
					return "", "", err
				}
				return s.Name, s.Hash, nil
			},
		},
	}
}

// Kinds reports the credential kinds this checker handles.
func (c *PasswordChecker) Kinds() []creds.Kind {
	return []creds.Kind{creds.KindPassword}
}

// Authenticate tries each lookup in order. Unknown users and sentinel hashes
// skip to the next source without rejecting; the first verified hash wins
// and yields that source's account name. Exhausting every source yields
// ErrUnauthorized.
func (c *PasswordChecker) Authenticate(ctx context.Context, cred creds.Credential) (string, error) {
	pw, ok := cred.(creds.Password)
	if !ok {
		return "", ErrUnhandled
	}

	sentinels := c.Sentinels
	if sentinels == nil {
		sentinels = DefaultSentinels
	}
	verify := c.Verify
	if verify == nil {
		verify = passhash.Verify
	}

	for _, lookup := range c.Lookups {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name, hash, err := lookup(pw.Username)
		if err != nil {
			if !errors.Is(err, userdb.ErrUnknownUser) {
				log.Printf("password: lookup for %q: %v", pw.Username, err)
			}
			continue
		}
		if slices.Contains(sentinels, hash) {
			continue
		}
		if verify(hash, pw.Password) {
			return name, nil
		}
		if c.HostFallback != nil && passhash.Unsupported(hash) {
			ok, err := c.HostFallback(pw.Username, pw.Password)
			if err != nil {
				log.Printf("password: host fallback for %q: %v", pw.Username, err)
			} else if ok {
				return name, nil
			}
		}
	}
	return "", ErrUnauthorized
}
