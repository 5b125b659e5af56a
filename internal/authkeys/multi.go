package authkeys

import (
	"iter"
	"log"

	"golang.org/x/crypto/ssh"
)

// Multi concatenates several sources in order. A source that fails outright
// is logged and skipped, shrinking the result instead of failing the whole
// lookup, matching how unreadable files behave within a single source.
type Multi []Source

// AuthorizedKeys yields the keys of every sub-source in registration order.
func (m Multi) AuthorizedKeys(username string) (iter.Seq[ssh.PublicKey], error) {
	return func(yield func(ssh.PublicKey) bool) {
		for _, src := range m {
			seq, err := src.AuthorizedKeys(username)
			if err != nil {
				log.Printf("authkeys: source %T for %q: %v", src, username, err)
				continue
			}
			for key := range seq {
				if !yield(key) {
					return
				}
			}
		}
	}, nil
}
