package checkers

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"golang.org/x/crypto/ssh"

	"github.com/pmork/gatekeep/internal/authkeys"
	"github.com/pmork/gatekeep/internal/creds"
)

// PublicKeyChecker authenticates public-key credentials against an
// authorized-keys source.
type PublicKeyChecker struct {
	keys authkeys.Source
}

// NewPublicKeyChecker builds a checker over the given key source.
func NewPublicKeyChecker(keys authkeys.Source) *PublicKeyChecker {
	return &PublicKeyChecker{keys: keys}
}

// Kinds reports the credential kinds this checker handles.
func (c *PublicKeyChecker) Kinds() []creds.Kind {
	return []creds.Kind{creds.KindPublicKey}
}

// Authenticate decides the outcome for one public-key credential.
// A credential without a signature yields ErrSignatureRequired once the rest
// of the flow would apply; an unparsable blob yields ErrMalformedKey; every
// other failure, including source and verification errors, is logged and
// normalized to ErrUnauthorized.
func (c *PublicKeyChecker) Authenticate(ctx context.Context, cred creds.Credential) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	pk, ok := cred.(creds.PublicKey)
	if !ok {
		return "", ErrUnhandled
	}

	if pk.Signature == nil {
		return "", ErrSignatureRequired
	}

	submitted, err := ssh.ParsePublicKey(pk.Blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	seq, err := c.keys.AuthorizedKeys(pk.Username)
	if err != nil {
		log.Printf("pubkey: authorized keys for %q: %v", pk.Username, err)
		return "", ErrUnauthorized
	}

	wire := submitted.Marshal()
	var matched ssh.PublicKey
	for key := range seq {
		if bytes.Equal(key.Marshal(), wire) {
			matched = key
			break
		}
	}
	if matched == nil {
		return "", ErrUnauthorized
	}

	var sig ssh.Signature
	if err := ssh.Unmarshal(pk.Signature, &sig); err != nil {
		log.Printf("pubkey: parse signature for %q: %v", pk.Username, err)
		return "", ErrUnauthorized
	}
	if err := matched.Verify(pk.SignedData, &sig); err != nil {
		return "", ErrUnauthorized
	}

	return pk.Username, nil
}
