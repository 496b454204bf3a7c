package db

import (
	"context"
	"fmt"

	"github.com/soumetsu-project/soumetsu/internal/models"
)

const userColumns = `id, username, username_safe, password_md5, email,
	ban_datetime, register_datetime, latest_activity, donor_expire,
	silence_end, silence_reason, privileges, notes, country, forzen,
	freezedate`

// UserRepository loads and stores users.
type UserRepository struct {
	db *Database
}

// NewUserRepository creates a repository over d.
func NewUserRepository(d *Database) *UserRepository {
	return &UserRepository{db: d}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		privileges int64
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.NameSafe, &u.PasswordHash, &u.Email,
		&u.BanTimestamp, &u.RegisterTimestamp, &u.LastOnlineTimestamp, &u.SupporterExpiry,
		&u.SilenceEnd, &u.SilenceReason, &privileges, &u.Notes, &u.Country, &u.Frozen,
		&u.FreezeEnd,
	)
	found, err := scanErr(err)
	if err != nil || !found {
		return nil, err
	}
	u.Privileges = models.Privileges(privileges)
	return &u, nil
}

// Fetch returns the user with id, or nil if there is none.
func (r *UserRepository) Fetch(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("fetch user %d: %w", id, err)
	}
	return u, nil
}

// FetchByName looks a user up by username in safe form.
func (r *UserRepository) FetchByName(ctx context.Context, name string) (*models.User, error) {
	safe := models.SafeName(name)
	u, err := scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username_safe = ?", safe))
	if err != nil {
		return nil, fmt.Errorf("fetch user %q: %w", safe, err)
	}
	return u, nil
}

// Update writes every column of u back to its row.
func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET username = ?, username_safe = ?,
		password_md5 = ?, email = ?, ban_datetime = ?, register_datetime = ?,
		latest_activity = ?, donor_expire = ?, silence_end = ?, silence_reason = ?,
		privileges = ?, notes = ?, country = ?, forzen = ?, freezedate = ?
		WHERE id = ?`,
		u.Name, u.NameSafe, u.PasswordHash, u.Email, u.BanTimestamp, u.RegisterTimestamp,
		u.LastOnlineTimestamp, u.SupporterExpiry, u.SilenceEnd, u.SilenceReason,
		int64(u.Privileges), u.Notes, u.Country, u.Frozen, u.FreezeEnd,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return nil
}

// UpdateLastOnline sets latest_activity for a user.
func (r *UserRepository) UpdateLastOnline(ctx context.Context, id, unix int64) error {
	if _, err := r.db.Exec(ctx, "UPDATE users SET latest_activity = ? WHERE id = ?", unix, id); err != nil {
		return fmt.Errorf("update last online %d: %w", id, err)
	}
	return nil
}

// Insert creates a row for u and returns the new id. u.ID is ignored.
func (r *UserRepository) Insert(ctx context.Context, u *models.User) (int64, error) {
	if u.NameSafe == "" {
		u.NameSafe = models.SafeName(u.Name)
	}
	res, err := r.db.Exec(ctx, `INSERT INTO users (username, username_safe,
		password_md5, email, ban_datetime, register_datetime, latest_activity,
		donor_expire, silence_end, silence_reason, privileges, notes, country,
		forzen, freezedate) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.NameSafe, u.PasswordHash, u.Email, u.BanTimestamp, u.RegisterTimestamp,
		u.LastOnlineTimestamp, u.SupporterExpiry, u.SilenceEnd, u.SilenceReason,
		int64(u.Privileges), u.Notes, u.Country, u.Frozen, u.FreezeEnd,
	)
	if err != nil {
		return 0, fmt.Errorf("insert user %q: %w", u.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user %q: %w: %v", u.Name, ErrDatabaseUnavailable, err)
	}
	return id, nil
}
