package privs

import (
	"errors"
	"io"
	"io/fs"
	"reflect"
	"strings"
	"testing"
)

// fakeIdentity records every effective-id change in order.
type fakeIdentity struct {
	euid, egid int

	seteuidCalls []int
	setegidCalls []int

	failSeteuid map[int]error
}

func newFakeIdentity(euid, egid int) *fakeIdentity {
	return &fakeIdentity{euid: euid, egid: egid}
}

func (f *fakeIdentity) Euid() int { return f.euid }
func (f *fakeIdentity) Egid() int { return f.egid }

func (f *fakeIdentity) Seteuid(uid int) error {
	if err, ok := f.failSeteuid[uid]; ok {
		return err
	}
	f.seteuidCalls = append(f.seteuidCalls, uid)
	f.euid = uid
	return nil
}

func (f *fakeIdentity) Setegid(gid int) error {
	f.setegidCalls = append(f.setegidCalls, gid)
	f.egid = gid
	return nil
}

func TestRunAsRaisesToRootAndRestores(t *testing.T) {
	id := newFakeIdentity(1000, 100)

	var sawEuid, sawEgid int
	err := RunAs(id, 0, 0, func() error {
		sawEuid, sawEgid = id.Euid(), id.Egid()
		return nil
	})
	if err != nil {
		t.Fatalf("RunAs: %v", err)
	}
	if sawEuid != 0 || sawEgid != 0 {
		t.Fatalf("expected euid=0 egid=0 inside fn, got %d/%d", sawEuid, sawEgid)
	}

	if want := []int{0, 1000}; !reflect.DeepEqual(id.seteuidCalls, want) {
		t.Fatalf("seteuid calls = %v, want %v", id.seteuidCalls, want)
	}
	if want := []int{0, 100}; !reflect.DeepEqual(id.setegidCalls, want) {
		t.Fatalf("setegid calls = %v, want %v", id.setegidCalls, want)
	}
	if id.euid != 1000 || id.egid != 100 {
		t.Fatalf("identity not restored: euid=%d egid=%d", id.euid, id.egid)
	}
}

func TestRunAsTargetUserFromUnprivileged(t *testing.T) {
	id := newFakeIdentity(1000, 100)

	err := RunAs(id, 1001, 101, func() error { return nil })
	if err != nil {
		t.Fatalf("RunAs: %v", err)
	}

	// Raising to another user passes through root, and dropping back to
	// root again before the gid restore.
	if want := []int{0, 1001, 0, 1000}; !reflect.DeepEqual(id.seteuidCalls, want) {
		t.Fatalf("seteuid calls = %v, want %v", id.seteuidCalls, want)
	}
	if want := []int{101, 100}; !reflect.DeepEqual(id.setegidCalls, want) {
		t.Fatalf("setegid calls = %v, want %v", id.setegidCalls, want)
	}
}

func TestRunAsNoopWhenAlreadyTarget(t *testing.T) {
	id := newFakeIdentity(0, 0)

	called := false
	if err := RunAs(id, 0, 0, func() error { called = true; return nil }); err != nil {
		t.Fatalf("RunAs: %v", err)
	}
	if !called {
		t.Fatalf("fn was not called")
	}
	if len(id.seteuidCalls) != 0 || len(id.setegidCalls) != 0 {
		t.Fatalf("expected no id switches, got seteuid=%v setegid=%v", id.seteuidCalls, id.setegidCalls)
	}
}

func TestRunAsRestoresOnFnError(t *testing.T) {
	id := newFakeIdentity(1000, 100)

	boom := errors.New("boom")
	err := RunAs(id, 0, 0, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if id.euid != 1000 || id.egid != 100 {
		t.Fatalf("identity not restored after error: euid=%d egid=%d", id.euid, id.egid)
	}
}

func TestRunAsPanicsWhenRestoreFails(t *testing.T) {
	id := newFakeIdentity(1000, 100)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic on failed restore")
		}
		if !strings.Contains(r.(string), "restoring") {
			t.Fatalf("unexpected panic message: %v", r)
		}
	}()

	_ = RunAs(id, 0, 100, func() error {
		// Once inside, make the way back impossible.
		id.failSeteuid = map[int]error{1000: errors.New("denied")}
		return nil
	})
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func TestOpenAsUserDirectSuccess(t *testing.T) {
	id := newFakeIdentity(0, 0)

	f, err := openAsUser(id, func(p string) (io.ReadCloser, error) {
		return nopCloser{strings.NewReader("keys")}, nil
	}, "/home/alice/.ssh/authorized_keys", 1000, 100)
	if err != nil {
		t.Fatalf("openAsUser: %v", err)
	}
	defer f.Close()

	if len(id.seteuidCalls) != 0 {
		t.Fatalf("expected no id switches on direct open, got %v", id.seteuidCalls)
	}
}

func TestOpenAsUserRetriesOnPermission(t *testing.T) {
	id := newFakeIdentity(0, 0)

	calls := 0
	f, err := openAsUser(id, func(p string) (io.ReadCloser, error) {
		calls++
		if id.Euid() != 1000 {
			return nil, fs.ErrPermission
		}
		return nopCloser{strings.NewReader("keys")}, nil
	}, "/home/alice/.ssh/authorized_keys", 1000, 100)
	if err != nil {
		t.Fatalf("openAsUser: %v", err)
	}
	defer f.Close()

	if calls != 2 {
		t.Fatalf("expected 2 open attempts, got %d", calls)
	}
	if want := []int{1000, 0}; !reflect.DeepEqual(id.seteuidCalls, want) {
		t.Fatalf("seteuid calls = %v, want %v", id.seteuidCalls, want)
	}
	if want := []int{100, 0}; !reflect.DeepEqual(id.setegidCalls, want) {
		t.Fatalf("setegid calls = %v, want %v", id.setegidCalls, want)
	}
}

func TestOpenAsUserPassesThroughOtherErrors(t *testing.T) {
	id := newFakeIdentity(0, 0)

	_, err := openAsUser(id, func(p string) (io.ReadCloser, error) {
		return nil, fs.ErrNotExist
	}, "/nope", 1000, 100)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if len(id.seteuidCalls) != 0 {
		t.Fatalf("expected no id switches, got %v", id.seteuidCalls)
	}
}
