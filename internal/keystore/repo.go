// Package keystore is a SQLite-backed authorized-key store: per-account key
// rows managed by the admin tool and served to the checkers as an
// authkeys.Source.
package keystore

import (
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Account is one managed account.
type Account struct {
	ID        int
	Username  string
	CreatedAt time.Time
	KeyCount  int
}

// Key is one stored authorized key.
type Key struct {
	ID        int
	Algorithm string
	Line      string
	Comment   string
	CreatedAt time.Time
}

// Repo handles database operations for accounts and their keys.
type Repo struct {
	db *sql.DB
}

// NewRepo creates a key-store repository.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// ListAccounts returns all accounts with their key counts, ordered by name.
func (r *Repo) ListAccounts() ([]Account, error) {
	rows, err := r.db.Query(`
		SELECT a.id, a.username, a.created_at, COUNT(k.id)
		FROM accounts a
		LEFT JOIN authorized_keys k ON k.account_id = a.id
		GROUP BY a.id
		ORDER BY a.username
	`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Username, &a.CreatedAt, &a.KeyCount); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Exists reports whether an account exists.
func (r *Repo) Exists(username string) bool {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM accounts WHERE username = ?", username).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// AddKey stores one authorized-keys line for username, creating the account
// if needed. The line must parse as a public key; its algorithm and comment
// are extracted for display.
func (r *Repo) AddKey(username, line string) (*Key, error) {
	line = strings.TrimSpace(line)
	pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return nil, fmt.Errorf("parse key for %s: %w", username, err)
	}

	accountID, err := r.ensureAccount(username)
	if err != nil {
		return nil, err
	}

	result, err := r.db.Exec(`
		INSERT INTO authorized_keys (account_id, algorithm, key_line, comment)
		VALUES (?, ?, ?, ?)
	`, accountID, pub.Type(), line, comment)
	if err != nil {
		return nil, fmt.Errorf("store key for %s: %w", username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get key id: %w", err)
	}
	return &Key{ID: int(id), Algorithm: pub.Type(), Line: line, Comment: comment}, nil
}

func (r *Repo) ensureAccount(username string) (int, error) {
	var id int
	err := r.db.QueryRow("SELECT id FROM accounts WHERE username = ?", username).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("find account %s: %w", username, err)
	}

	result, err := r.db.Exec("INSERT INTO accounts (username) VALUES (?)", username)
	if err != nil {
		return 0, fmt.Errorf("create account %s: %w", username, err)
	}
	newID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get account id: %w", err)
	}
	return int(newID), nil
}

// Keys returns the stored keys for username, oldest first.
func (r *Repo) Keys(username string) ([]Key, error) {
	rows, err := r.db.Query(`
		SELECT k.id, k.algorithm, k.key_line, k.comment, k.created_at
		FROM authorized_keys k
		JOIN accounts a ON a.id = k.account_id
		WHERE a.username = ?
		ORDER BY k.id
	`, username)
	if err != nil {
		return nil, fmt.Errorf("keys for %s: %w", username, err)
	}
	defer rows.Close()

	var out []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.ID, &k.Algorithm, &k.Line, &k.Comment, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RemoveKey deletes one stored key by id.
func (r *Repo) RemoveKey(id int) error {
	if _, err := r.db.Exec("DELETE FROM authorized_keys WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove key %d: %w", id, err)
	}
	return nil
}

// RemoveAccount deletes an account and, through the schema's cascade, all
// its keys.
func (r *Repo) RemoveAccount(username string) error {
	if _, err := r.db.Exec("DELETE FROM accounts WHERE username = ?", username); err != nil {
		return fmt.Errorf("remove account %s: %w", username, err)
	}
	return nil
}

// AuthorizedKeys implements authkeys.Source over the store. The stored lines
// are fetched up front (database cursors should not outlive the call) but
// parsed lazily as the sequence is consumed; lines that no longer parse are
// skipped.
func (r *Repo) AuthorizedKeys(username string) (iter.Seq[ssh.PublicKey], error) {
	keys, err := r.Keys(username)
	if err != nil {
		return nil, err
	}
	return func(yield func(ssh.PublicKey) bool) {
		for _, k := range keys {
			pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k.Line))
			if err != nil {
				continue
			}
			if !yield(pub) {
				return
			}
		}
	}, nil
}
