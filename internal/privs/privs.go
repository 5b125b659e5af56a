// Package privs wraps the process-wide effective uid/gid switching needed to
// read files owned by other users. All mutation of the effective identity
// goes through RunAs so that restore-on-every-path is structural rather than
// a convention each caller has to remember.
package privs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// Identity exposes get/set of the process effective uid and gid. The OS()
// implementation mutates real process state; tests substitute fakes.
type Identity interface {
	Euid() int
	Egid() int
	Seteuid(uid int) error
	Setegid(gid int) error
}

// mu serializes every identity switch. Effective uid/gid is process-wide
// state, so the full raise-operate-restore span must never interleave with
// another switch on a different goroutine.
var mu sync.Mutex

// RunAs runs fn with the effective identity switched to euid/egid and
// restores the prior identity before returning, on success and failure
// alike. Raising requires passing through euid 0 first. A restore failure
// panics: it leaves the process in a corrupted security state that must not
// be allowed to keep serving.
func RunAs(id Identity, euid, egid int, fn func() error) error {
	mu.Lock()
	defer mu.Unlock()

	savedEuid := id.Euid()
	savedEgid := id.Egid()
	if euid == savedEuid && egid == savedEgid {
		return fn()
	}

	cur := savedEuid
	changedGid := false
	defer func() {
		if changedGid {
			if cur != 0 {
				mustSeteuid(id, 0)
				cur = 0
			}
			if err := id.Setegid(savedEgid); err != nil {
				panic(fmt.Sprintf("privs: restoring egid %d: %v", savedEgid, err))
			}
		}
		if cur != savedEuid {
			mustSeteuid(id, savedEuid)
		}
	}()

	if savedEuid != 0 {
		if err := id.Seteuid(0); err != nil {
			return fmt.Errorf("seteuid 0: %w", err)
		}
		cur = 0
	}
	if egid != savedEgid {
		if err := id.Setegid(egid); err != nil {
			return fmt.Errorf("setegid %d: %w", egid, err)
		}
		changedGid = true
	}
	if euid != cur {
		if err := id.Seteuid(euid); err != nil {
			return fmt.Errorf("seteuid %d: %w", euid, err)
		}
		cur = euid
	}

	return fn()
}

func mustSeteuid(id Identity, uid int) {
	if err := id.Seteuid(uid); err != nil {
		panic(fmt.Sprintf("privs: restoring euid %d: %v", uid, err))
	}
}

// OpenAsUser opens path for reading, retrying as uid/gid if the direct open
// is denied. The caller owns the returned stream; the effective identity is
// already restored by the time OpenAsUser returns.
func OpenAsUser(id Identity, path string, uid, gid int) (io.ReadCloser, error) {
	return openAsUser(id, func(p string) (io.ReadCloser, error) {
		return os.Open(p)
	}, path, uid, gid)
}

func openAsUser(id Identity, open func(string) (io.ReadCloser, error), path string, uid, gid int) (io.ReadCloser, error) {
	f, err := open(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrPermission) {
		return nil, err
	}

	runErr := RunAs(id, uid, gid, func() error {
		f, err = open(path)
		return err
	})
	if runErr != nil {
		return nil, runErr
	}
	return f, nil
}
