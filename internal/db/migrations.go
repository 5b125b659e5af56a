package db

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "create accounts table",
		sql: `
			CREATE TABLE IF NOT EXISTS accounts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT UNIQUE NOT NULL COLLATE NOCASE,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`,
	},
	{
		name: "create authorized keys table",
		sql: `
			CREATE TABLE IF NOT EXISTS authorized_keys (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				algorithm TEXT NOT NULL,
				key_line TEXT NOT NULL,
				comment TEXT DEFAULT '',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_authorized_keys_account ON authorized_keys(account_id);
		`,
	},
}
