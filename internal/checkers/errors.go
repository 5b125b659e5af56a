// Package checkers contains the authentication decision engines: given
// client-supplied credentials and backing identity sources, each checker
// yields an authenticated username or a precise failure.
package checkers

import "errors"

var (
	// ErrUnauthorized means the credentials were well-formed but wrong.
	// Every internal failure a checker swallows also surfaces as this.
	ErrUnauthorized = errors.New("unauthorized login")

	// ErrMalformedKey means the presented key blob could not be parsed.
	ErrMalformedKey = errors.New("malformed public key")

	// ErrSignatureRequired means the presented key is known and valid but
	// the client has not yet proven possession. It is a "continue" signal
	// to the transport layer, not a rejection.
	ErrSignatureRequired = errors.New("valid public key, signature required")

	// ErrUnhandled means no checker is registered for the credential kind.
	ErrUnhandled = errors.New("unhandled credential kind")

	// ErrMoreFactorsRequired means one factor was accepted but policy
	// demands more. Like ErrSignatureRequired it tells the transport to
	// solicit another credential, not to end the attempt.
	ErrMoreFactorsRequired = errors.New("more authentication factors required")
)
