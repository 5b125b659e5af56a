//go:build linux

package privs

import (
	"os"
	"testing"
)

func TestOSIdentityReportsProcessIDs(t *testing.T) {
	id := OS()

	if got, want := id.Euid(), os.Geteuid(); got != want {
		t.Fatalf("Euid() = %d, want %d", got, want)
	}
	if got, want := id.Egid(), os.Getegid(); got != want {
		t.Fatalf("Egid() = %d, want %d", got, want)
	}
}

func TestOSIdentitySetToCurrent(t *testing.T) {
	// Setting the effective ids to their current values is permitted for
	// any process and exercises the real setter path.
	id := OS()

	if err := id.Seteuid(id.Euid()); err != nil {
		t.Fatalf("Seteuid(current): %v", err)
	}
	if err := id.Setegid(id.Egid()); err != nil {
		t.Fatalf("Setegid(current): %v", err)
	}
}
