// Package passhash verifies plaintext passwords against crypt(3)-style
// password hashes as found in /etc/passwd and /etc/shadow entries.
package passhash

import (
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"
)

// Verify reports whether password matches hash. It re-derives the hash using
// the salt and algorithm embedded in hash and compares for equality.
// Supported formats: $1$ (md5-crypt), $5$ (sha256-crypt), $6$ (sha512-crypt)
// and $2a/$2b/$2y$ (bcrypt). A malformed or unsupported hash never matches;
// derivation failures are not reported as errors.
func Verify(hash, password string) bool {
	if hash == "" {
		return false
	}

	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}

	for _, c := range crypters() {
		if err := c.Verify(hash, []byte(password)); err == nil {
			return true
		}
	}
	return false
}

func crypters() []crypt.Crypter {
	return []crypt.Crypter{
		sha512_crypt.New(),
		sha256_crypt.New(),
		md5_crypt.New(),
	}
}

// Unsupported reports whether hash uses a scheme only the host libc can
// derive: classic DES two-character-salt hashes and newer modular forms like
// yescrypt ($y$) or scrypt ($7$). Callers may route such entries through
// HostVerifier instead of treating them as mismatches.
func Unsupported(hash string) bool {
	for _, prefix := range []string{"$y$", "$gy$", "$7$"} {
		if strings.HasPrefix(hash, prefix) {
			return true
		}
	}
	// Classic DES crypt: 13 characters from the hash64 alphabet, no
	// modular-crypt prefix.
	if len(hash) == 13 && !strings.HasPrefix(hash, "$") {
		for i := 0; i < len(hash); i++ {
			if !isHash64(hash[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func isHash64(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '/':
		return true
	}
	return false
}
