package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/soumetsu-project/soumetsu/internal/models"
)

const hwidColumns = "id, userid, mac, unique_id, disk_id, occurencies, activated"

// HWIDRepository stores hardware fingerprints reported at login.
type HWIDRepository struct {
	db *Database
}

// NewHWIDRepository creates a repository over d.
func NewHWIDRepository(d *Database) *HWIDRepository {
	return &HWIDRepository{db: d}
}

func scanHWID(row rowScanner) (*models.HWIDLog, error) {
	var h models.HWIDLog
	err := row.Scan(&h.ID, &h.UserID, &h.MacHash, &h.UniqueHash, &h.DiskHash, &h.Occurrences, &h.Activated)
	found, err := scanErr(err)
	if err != nil || !found {
		return nil, err
	}
	return &h, nil
}

// Fetch returns the log entry with id, or nil.
func (r *HWIDRepository) Fetch(ctx context.Context, id int64) (*models.HWIDLog, error) {
	h, err := scanHWID(r.db.QueryRow(ctx, "SELECT "+hwidColumns+" FROM hw_user WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("fetch hwid %d: %w", id, err)
	}
	return h, nil
}

// FetchByUser returns the first entry recorded for a user, or nil.
func (r *HWIDRepository) FetchByUser(ctx context.Context, userID int64) (*models.HWIDLog, error) {
	h, err := scanHWID(r.db.QueryRow(ctx,
		"SELECT "+hwidColumns+" FROM hw_user WHERE userid = ? ORDER BY id LIMIT 1", userID))
	if err != nil {
		return nil, fmt.Errorf("fetch hwid for user %d: %w", userID, err)
	}
	return h, nil
}

// Insert stores h and returns its id.
func (r *HWIDRepository) Insert(ctx context.Context, h *models.HWIDLog) (int64, error) {
	res, err := r.db.Exec(ctx,
		"INSERT INTO hw_user (userid, mac, unique_id, disk_id, occurencies, activated) VALUES (?, ?, ?, ?, ?, ?)",
		h.UserID, h.MacHash, h.UniqueHash, h.DiskHash, h.Occurrences, h.Activated)
	if err != nil {
		return 0, fmt.Errorf("insert hwid for user %d: %w", h.UserID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert hwid: %w: %v", ErrDatabaseUnavailable, err)
	}
	return id, nil
}

// Record logs a fingerprint for a user: an identical existing entry has its
// occurrence count bumped, otherwise a new entry is inserted.
func (r *HWIDRepository) Record(ctx context.Context, userID int64, mac, unique, disk string) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE hw_user SET occurencies = occurencies + 1
			WHERE userid = ? AND mac = ? AND unique_id = ? AND disk_id = ?`,
			userID, mac, unique, disk)
		if err != nil {
			return fmt.Errorf("record hwid: %w: %v", ErrDatabaseUnavailable, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO hw_user (userid, mac, unique_id, disk_id, occurencies, activated) VALUES (?, ?, ?, ?, 1, 1)",
			userID, mac, unique, disk)
		if err != nil {
			return fmt.Errorf("record hwid: %w: %v", ErrDatabaseUnavailable, err)
		}
		return nil
	})
}
