// Package creds defines the credential value types handed to the
// authentication checkers by a transport layer. Each credential carries a
// Kind tag so the aggregator can dispatch without reflection.
package creds

// Kind identifies a credential type for checker registration and dispatch.
type Kind string

const (
	// KindPassword is a username plus plaintext password.
	KindPassword Kind = "password"
	// KindPublicKey is a username plus SSH public key, optionally with a
	// signature proving possession of the private key.
	KindPublicKey Kind = "publickey"
)

// Credential is any client-supplied authentication material. Credentials are
// immutable once constructed and live for a single authentication attempt.
type Credential interface {
	Kind() Kind
	User() string
}

// Password is a username/password pair.
type Password struct {
	Username string
	Password string
}

func (Password) Kind() Kind     { return KindPassword }
func (c Password) User() string { return c.Username }

// PublicKey is a username plus an SSH public key blob. SignedData and
// Signature are nil until the client has actually signed; a checker seeing
// a nil Signature reports that a signature is still required rather than
// rejecting.
type PublicKey struct {
	Username   string
	Algorithm  string
	Blob       []byte
	SignedData []byte
	Signature  []byte
}

func (PublicKey) Kind() Kind     { return KindPublicKey }
func (c PublicKey) User() string { return c.Username }
