package passhash

import (
	"testing"

	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"
)

func TestVerifySHA512(t *testing.T) {
	hash, err := sha512_crypt.New().Generate([]byte("sekrit"), []byte("$6$saltstring"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !Verify(hash, "sekrit") {
		t.Fatalf("expected match for correct password against %q", hash)
	}
	if Verify(hash, "wrong") {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestVerifySHA256(t *testing.T) {
	hash, err := sha256_crypt.New().Generate([]byte("sekrit"), []byte("$5$saltstring"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !Verify(hash, "sekrit") {
		t.Fatalf("expected match for correct password against %q", hash)
	}
	if Verify(hash, "hunter2") {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestVerifyMD5(t *testing.T) {
	hash, err := md5_crypt.New().Generate([]byte("sekrit"), []byte("$1$abcd1234"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !Verify(hash, "sekrit") {
		t.Fatalf("expected match for correct password against %q", hash)
	}
	if Verify(hash, "") {
		t.Fatalf("expected mismatch for empty password")
	}
}

func TestVerifyBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekrit"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !Verify(string(hash), "sekrit") {
		t.Fatalf("expected match for correct password")
	}
	if Verify(string(hash), "sekrit2") {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestVerifyMalformed(t *testing.T) {
	for _, hash := range []string{"", "x", "*", "!", "$9$nosuch$scheme", "not-a-hash"} {
		if Verify(hash, "anything") {
			t.Fatalf("expected no match for hash %q", hash)
		}
	}
}

func TestUnsupported(t *testing.T) {
	cases := []struct {
		hash string
		want bool
	}{
		{"$y$j9T$salt$hashhashhashhash", true},
		{"$gy$j9T$salt$hashhashhashhash", true},
		{"$7$C6..../....salt$hash", true},
		{"gAVXUGyzEOTcE", true}, // classic DES form
		{"$6$saltstring$hash", false},
		{"$1$abcd$hash", false},
		{"x", false},
		{"*", false},
		{"", false},
		{"gAVXUGyzEOTc!", false}, // 13 chars but outside the hash64 alphabet
	}
	for _, c := range cases {
		if got := Unsupported(c.hash); got != c.want {
			t.Fatalf("Unsupported(%q) = %v, want %v", c.hash, got, c.want)
		}
	}
}
