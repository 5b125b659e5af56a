package checkers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/GehirnInc/crypt/sha512_crypt"

	"github.com/pmork/gatekeep/internal/creds"
	"github.com/pmork/gatekeep/internal/userdb"
)

type nopIdentity struct{}

func (nopIdentity) Euid() int             { return 0 }
func (nopIdentity) Egid() int             { return 0 }
func (nopIdentity) Seteuid(uid int) error { return nil }
func (nopIdentity) Setegid(gid int) error { return nil }

func cryptSHA512(t *testing.T, password string) string {
	t.Helper()
	hash, err := sha512_crypt.New().Generate([]byte(password), []byte("$6$saltstring"))
	if err != nil {
		t.Fatalf("generate hash: %v", err)
	}
	return hash
}

func openTestDB(t *testing.T, passwd, shadow string) *userdb.DB {
	t.Helper()
	dir := t.TempDir()
	passwdPath := filepath.Join(dir, "passwd")
	if err := os.WriteFile(passwdPath, []byte(passwd), 0644); err != nil {
		t.Fatalf("write passwd: %v", err)
	}
	shadowPath := ""
	if shadow != "" {
		shadowPath = filepath.Join(dir, "shadow")
		if err := os.WriteFile(shadowPath, []byte(shadow), 0600); err != nil {
			t.Fatalf("write shadow: %v", err)
		}
	}
	return userdb.Open(passwdPath, shadowPath, nopIdentity{})
}

func TestPasswordDirectHashInPasswd(t *testing.T) {
	hash := cryptSHA512(t, "sekrit")
	db := openTestDB(t, "alice:"+hash+":1000:100::/home/alice:/bin/sh\n", "")
	c := NewPasswordChecker(db)

	name, err := c.Authenticate(context.Background(), creds.Password{Username: "alice", Password: "sekrit"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if name != "alice" {
		t.Fatalf("expected username alice, got %q", name)
	}

	_, err = c.Authenticate(context.Background(), creds.Password{Username: "alice", Password: "wrong"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPasswordFallsThroughToShadow(t *testing.T) {
	hash := cryptSHA512(t, "sekrit")
	db := openTestDB(t,
		"alice:x:1000:100::/home/alice:/bin/sh\n",
		"alice:"+hash+":19000:0:99999:7:::\n")
	c := NewPasswordChecker(db)

	name, err := c.Authenticate(context.Background(), creds.Password{Username: "alice", Password: "sekrit"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if name != "alice" {
		t.Fatalf("expected username alice, got %q", name)
	}
}

func TestPasswordSentinelNeverMatchesLiterally(t *testing.T) {
	// The literal password "x" must not match the sentinel hash "x".
	db := openTestDB(t, "bob:x:1001:100::/home/bob:/bin/sh\n", "")
	c := NewPasswordChecker(db)

	_, err := c.Authenticate(context.Background(), creds.Password{Username: "bob", Password: "x"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPasswordUnknownUser(t *testing.T) {
	db := openTestDB(t, "alice:x:1000:100::/home/alice:/bin/sh\n", "")
	c := NewPasswordChecker(db)

	_, err := c.Authenticate(context.Background(), creds.Password{Username: "mallory", Password: "anything"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPasswordCustomSentinels(t *testing.T) {
	db := openTestDB(t,
		"carol:LOCKED:1002:100::/home/carol:/bin/sh\n",
		"carol:"+cryptSHA512(t, "sekrit")+":19000:0:99999:7:::\n")
	c := NewPasswordChecker(db)
	c.Sentinels = []string{"", "x", "*", "LOCKED"}

	name, err := c.Authenticate(context.Background(), creds.Password{Username: "carol", Password: "sekrit"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if name != "carol" {
		t.Fatalf("expected username carol, got %q", name)
	}
}

func TestPasswordOrderedLookupsReturnSourceName(t *testing.T) {
	// The winning source decides the account name.
	c := &PasswordChecker{
		Lookups: []LookupFunc{
			func(username string) (string, string, error) {
				return "", "", userdb.ErrUnknownUser
			},
			func(username string) (string, string, error) {
				return "alice-canonical", "anyhash", nil
			},
		},
		Verify: func(hash, password string) bool { return hash == "anyhash" && password == "sekrit" },
	}

	name, err := c.Authenticate(context.Background(), creds.Password{Username: "ALICE", Password: "sekrit"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if name != "alice-canonical" {
		t.Fatalf("expected the source's account name, got %q", name)
	}
}

func TestPasswordLookupErrorSkipsToNextSource(t *testing.T) {
	c := &PasswordChecker{
		Lookups: []LookupFunc{
			func(username string) (string, string, error) {
				return "", "", errors.New("source unavailable")
			},
			func(username string) (string, string, error) {
				return "alice", "ok", nil
			},
		},
		Verify: func(hash, password string) bool { return hash == "ok" },
	}

	name, err := c.Authenticate(context.Background(), creds.Password{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if name != "alice" {
		t.Fatalf("expected alice, got %q", name)
	}
}

func TestPasswordHostFallbackForUnsupportedHash(t *testing.T) {
	// Classic DES hash: Verify cannot derive it, the host fallback decides.
	c := &PasswordChecker{
		Lookups: []LookupFunc{
			func(username string) (string, string, error) {
				return "dave", "gAVXUGyzEOTcE", nil
			},
		},
		HostFallback: func(username, password string) (bool, error) {
			return username == "dave" && password == "legacy", nil
		},
	}

	name, err := c.Authenticate(context.Background(), creds.Password{Username: "dave", Password: "legacy"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if name != "dave" {
		t.Fatalf("expected dave, got %q", name)
	}

	_, err = c.Authenticate(context.Background(), creds.Password{Username: "dave", Password: "wrong"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPasswordWrongCredentialKind(t *testing.T) {
	c := &PasswordChecker{}
	_, err := c.Authenticate(context.Background(), creds.PublicKey{Username: "alice"})
	if !errors.Is(err, ErrUnhandled) {
		t.Fatalf("expected ErrUnhandled, got %v", err)
	}
}

func TestPasswordCancelledContext(t *testing.T) {
	c := &PasswordChecker{
		Lookups: []LookupFunc{
			func(username string) (string, string, error) {
				t.Fatalf("lookup ran despite cancelled context")
				return "", "", nil
			},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Authenticate(ctx, creds.Password{Username: "alice", Password: "pw"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
