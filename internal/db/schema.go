package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// schema mirrors the ripple column layout, including its spellings
// (forzen, occurencies), so existing dumps import unchanged.
const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		username_safe TEXT UNIQUE NOT NULL,
		password_md5 TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		ban_datetime INTEGER NOT NULL DEFAULT 0,
		register_datetime INTEGER NOT NULL DEFAULT 0,
		latest_activity INTEGER NOT NULL DEFAULT 0,
		donor_expire INTEGER NOT NULL DEFAULT 0,
		silence_end INTEGER NOT NULL DEFAULT 0,
		silence_reason TEXT NOT NULL DEFAULT '',
		privileges INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT 'XX',
		forzen INTEGER NOT NULL DEFAULT 0,
		freezedate INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS hw_user (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		userid INTEGER NOT NULL,
		mac TEXT NOT NULL,
		unique_id TEXT NOT NULL,
		disk_id TEXT NOT NULL,
		occurencies INTEGER NOT NULL DEFAULT 0,
		activated INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_hw_user_userid ON hw_user(userid);
`

// migrate creates the tables if they are missing.
func (d *Database) migrate(ctx context.Context) error {
	if _, err := d.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	log.Debug().Msg("database schema migrated")
	return nil
}
