package checkers

import (
	"context"
	"slices"

	"github.com/pmork/gatekeep/internal/creds"
)

// Checker decides an authentication outcome for the credential kinds it
// declares.
type Checker interface {
	Kinds() []creds.Kind
	Authenticate(ctx context.Context, cred creds.Credential) (string, error)
}

// Aggregator dispatches credentials to registered checkers by kind and
// applies multi-factor policy across one login attempt. The registration
// table is read-only after setup, so concurrent attempts may share an
// Aggregator without locking.
type Aggregator struct {
	checkers map[creds.Kind]Checker

	// AreDone reports whether the factors satisfied so far suffice to
	// grant username. Nil means a single verified factor is enough.
	AreDone func(username string, satisfied []creds.Kind) bool
}

// NewAggregator returns an aggregator with no registrations.
func NewAggregator() *Aggregator {
	return &Aggregator{checkers: make(map[creds.Kind]Checker)}
}

// Register maps credential kinds to c. With no explicit kinds the checker's
// declared kinds are used. A later registration for a kind overwrites the
// earlier one for that kind only.
func (a *Aggregator) Register(c Checker, kinds ...creds.Kind) {
	if len(kinds) == 0 {
		kinds = c.Kinds()
	}
	for _, k := range kinds {
		a.checkers[k] = c
	}
}

// Handles reports whether a checker is registered for kind.
func (a *Aggregator) Handles(kind creds.Kind) bool {
	_, ok := a.checkers[kind]
	return ok
}

// Checker returns the checker registered for kind. Transport adapters that
// manage their own per-connection state use this for direct dispatch.
func (a *Aggregator) Checker(kind creds.Kind) (Checker, bool) {
	c, ok := a.checkers[kind]
	return c, ok
}

// Done applies the multi-factor policy to an externally tracked satisfied
// set.
func (a *Aggregator) Done(username string, satisfied []creds.Kind) bool {
	return a.AreDone == nil || a.AreDone(username, satisfied)
}

// Kinds lists the registered credential kinds in sorted order.
func (a *Aggregator) Kinds() []creds.Kind {
	kinds := make([]creds.Kind, 0, len(a.checkers))
	for k := range a.checkers {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// RequireAllKinds sets AreDone to demand one verified factor for every
// registered kind. Call after all registrations.
func (a *Aggregator) RequireAllKinds() {
	want := a.Kinds()
	a.AreDone = func(_ string, satisfied []creds.Kind) bool {
		for _, k := range want {
			if !slices.Contains(satisfied, k) {
				return false
			}
		}
		return true
	}
}

// NewAttempt starts the aggregation state for one login attempt. The state
// lives until the attempt ends and is owned by a single connection; it is
// not safe for concurrent use.
func (a *Aggregator) NewAttempt() *Attempt {
	return &Attempt{agg: a, satisfied: make(map[creds.Kind]bool)}
}

// Attempt accumulates the credential kinds satisfied so far within one
// login attempt.
type Attempt struct {
	agg       *Aggregator
	satisfied map[creds.Kind]bool
}

// Satisfied lists the kinds verified so far, in sorted order.
func (at *Attempt) Satisfied() []creds.Kind {
	kinds := make([]creds.Kind, 0, len(at.satisfied))
	for k := range at.satisfied {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Authenticate routes cred to the checker registered for its kind. Checker
// failures propagate as-is; other registered checkers are not consulted for
// this credential. On success the kind is recorded and AreDone decides
// between granting username and ErrMoreFactorsRequired, in which case the
// transport should solicit another credential and resubmit into the same
// Attempt.
func (at *Attempt) Authenticate(ctx context.Context, cred creds.Credential) (string, error) {
	c, ok := at.agg.checkers[cred.Kind()]
	if !ok {
		return "", ErrUnhandled
	}

	username, err := c.Authenticate(ctx, cred)
	if err != nil {
		return "", err
	}

	at.satisfied[cred.Kind()] = true
	if !at.agg.Done(username, at.Satisfied()) {
		return "", ErrMoreFactorsRequired
	}
	return username, nil
}
