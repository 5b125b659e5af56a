//go:build linux

package privs

import (
	"syscall"

	"golang.org/x/sys/unix"
)

type osIdentity struct{}

// OS returns the real process identity. Seteuid/Setegid apply to all threads
// since the runtime forwards them through AllThreadsSyscall.
func OS() Identity { return osIdentity{} }

func (osIdentity) Euid() int { return unix.Geteuid() }
func (osIdentity) Egid() int { return unix.Getegid() }

// x/sys/unix omits Seteuid/Setegid on linux; the syscall package provides
// the all-threads variants.
func (osIdentity) Seteuid(uid int) error { return syscall.Seteuid(uid) }
func (osIdentity) Setegid(gid int) error { return syscall.Setegid(gid) }
