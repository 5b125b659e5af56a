//go:build !linux

package privs

import (
	"errors"
	"os"
)

type osIdentity struct{}

// OS returns the real process identity. Identity switching is only wired up
// on Linux; elsewhere reads that need it fail cleanly instead of escalating.
func OS() Identity { return osIdentity{} }

func (osIdentity) Euid() int             { return os.Geteuid() }
func (osIdentity) Egid() int             { return os.Getegid() }
func (osIdentity) Seteuid(uid int) error { return errSwitchUnsupported }
func (osIdentity) Setegid(gid int) error { return errSwitchUnsupported }

var errSwitchUnsupported = errors.New("effective identity switching unsupported on this platform")
