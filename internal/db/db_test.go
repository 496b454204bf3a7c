package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/soumetsu-project/soumetsu/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "data", "soumetsu.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(openTestDB(t))

	u := &models.User{
		Name:          "Cool Player",
		PasswordHash:  "$2a$10$hash",
		Email:         "cool@example.com",
		Privileges:    models.PrivUserPublic | models.PrivUserNormal,
		Country:       "GB",
		SilenceReason: "",
	}
	id, err := repo.Insert(ctx, u)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id <= 0 {
		t.Fatalf("Insert id = %d", id)
	}

	got, err := repo.Fetch(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("Fetch: %v, %v", got, err)
	}
	if got.NameSafe != "cool_player" || got.Country != "GB" || got.Privileges != u.Privileges {
		t.Errorf("Fetch = %+v", got)
	}

	byName, err := repo.FetchByName(ctx, "COOL player")
	if err != nil || byName == nil || byName.ID != id {
		t.Fatalf("FetchByName = %v, %v", byName, err)
	}

	got.Frozen = true
	got.SilenceEnd = 1700000000
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ := repo.Fetch(ctx, id)
	if !again.Frozen || again.SilenceEnd != 1700000000 {
		t.Errorf("Update not persisted: %+v", again)
	}

	if err := repo.UpdateLastOnline(ctx, id, 42); err != nil {
		t.Fatalf("UpdateLastOnline: %v", err)
	}
	again, _ = repo.Fetch(ctx, id)
	if again.LastOnlineTimestamp != 42 {
		t.Errorf("latest_activity = %d", again.LastOnlineTimestamp)
	}
}

func TestUserRepositoryMissing(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	u, err := repo.Fetch(context.Background(), 999)
	if err != nil || u != nil {
		t.Errorf("Fetch(missing) = %v, %v; want nil, nil", u, err)
	}
	u, err = repo.FetchByName(context.Background(), "nobody")
	if err != nil || u != nil {
		t.Errorf("FetchByName(missing) = %v, %v; want nil, nil", u, err)
	}
}

func TestUserRepositoryDuplicateName(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(openTestDB(t))
	if _, err := repo.Insert(ctx, &models.User{Name: "dup", PasswordHash: "x"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_, err := repo.Insert(ctx, &models.User{Name: "DUP", PasswordHash: "x"})
	if !errors.Is(err, ErrDatabaseUnavailable) {
		t.Errorf("duplicate insert err = %v", err)
	}
}

func TestDatabaseClosed(t *testing.T) {
	d := openTestDB(t)
	d.Close()
	if _, err := NewUserRepository(d).Fetch(context.Background(), 1); !errors.Is(err, ErrDatabaseUnavailable) {
		t.Errorf("Fetch on closed db err = %v", err)
	}
	if err := d.Ping(context.Background()); !errors.Is(err, ErrDatabaseUnavailable) {
		t.Errorf("Ping on closed db err = %v", err)
	}
}

func TestHWIDRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewHWIDRepository(openTestDB(t))

	id, err := repo.Insert(ctx, &models.HWIDLog{UserID: 3, MacHash: "m", UniqueHash: "u", DiskHash: "d", Occurrences: 1, Activated: true})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	h, err := repo.Fetch(ctx, id)
	if err != nil || h == nil {
		t.Fatalf("Fetch: %v, %v", h, err)
	}
	if h.UserID != 3 || h.MacHash != "m" || !h.Activated {
		t.Errorf("Fetch = %+v", h)
	}

	if err := repo.Record(ctx, 3, "m", "u", "d"); err != nil {
		t.Fatalf("Record existing: %v", err)
	}
	h, _ = repo.FetchByUser(ctx, 3)
	if h.Occurrences != 2 {
		t.Errorf("occurrences = %d, want 2", h.Occurrences)
	}

	if err := repo.Record(ctx, 4, "m2", "u2", "d2"); err != nil {
		t.Fatalf("Record new: %v", err)
	}
	h, _ = repo.FetchByUser(ctx, 4)
	if h == nil || h.Occurrences != 1 {
		t.Errorf("new entry = %+v", h)
	}

	if h, err := repo.FetchByUser(ctx, 99); err != nil || h != nil {
		t.Errorf("FetchByUser(missing) = %v, %v", h, err)
	}
}
