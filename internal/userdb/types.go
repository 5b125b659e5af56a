package userdb

// User is one /etc/passwd record: a read-only snapshot, never cached beyond
// a single lookup.
type User struct {
	Name   string
	Passwd string
	UID    int
	GID    int
	Gecos  string
	Home   string
	Shell  string
}

// Shadow is one /etc/shadow record. Aging fields stay strings: they are
// frequently empty and nothing here interprets them.
type Shadow struct {
	Name       string
	Hash       string
	LastChange string
	Min        string
	Max        string
	Warn       string
	Inactive   string
	Expire     string
	Reserved   string
}
