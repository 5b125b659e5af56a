package authkeys

import (
	"iter"

	"golang.org/x/crypto/ssh"
)

// InMemory serves authorized keys from a fixed mapping. Useful for tests and
// for servers whose key material is baked into configuration.
type InMemory struct {
	keys map[string][]ssh.PublicKey
}

// NewInMemory wraps a username-to-keys mapping. The mapping is not copied;
// callers must not mutate it after construction.
func NewInMemory(keys map[string][]ssh.PublicKey) *InMemory {
	return &InMemory{keys: keys}
}

// AuthorizedKeys yields the keys for username; unknown users yield nothing.
func (m *InMemory) AuthorizedKeys(username string) (iter.Seq[ssh.PublicKey], error) {
	keys := m.keys[username]
	return func(yield func(ssh.PublicKey) bool) {
		for _, k := range keys {
			if !yield(k) {
				return
			}
		}
	}, nil
}
