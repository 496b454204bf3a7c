// Package models holds the persistent records shared between the bancho
// core and its collaborators.
package models

import (
	"strings"
	"time"
)

// Privileges is the server-side privilege bitset stored on a user.
type Privileges int32

const (
	PrivUserPublic       Privileges = 1 << 0
	PrivUserNormal       Privileges = 1 << 1
	PrivUserDonor        Privileges = 1 << 2
	PrivAdminAccess      Privileges = 1 << 3
	PrivAdminManageUsers Privileges = 1 << 4
	PrivAdminBanUsers    Privileges = 1 << 5
	PrivAdminSilence     Privileges = 1 << 6
	PrivAdminChatMod     Privileges = 1 << 18
	PrivUserPendingVerif Privileges = 1 << 20
	PrivUserTournament   Privileges = 1 << 21
)

// Has reports whether all bits of p are set.
func (v Privileges) Has(p Privileges) bool {
	return v&p == p
}

// Bancho client privilege bits sent in SRV_PRIVILEGES and user presence.
const (
	BanchoPlayer     uint8 = 1 << 0
	BanchoModerator  uint8 = 1 << 1
	BanchoSupporter  uint8 = 1 << 2
	BanchoOwner      uint8 = 1 << 3
	BanchoDeveloper  uint8 = 1 << 4
	BanchoTournament uint8 = 1 << 5
)

// User is an account record. Timestamps are unix seconds as stored.
type User struct {
	ID                  int64
	Name                string
	NameSafe            string
	PasswordHash        string // bcrypt over the client's md5 hex digest
	Email               string
	BanTimestamp        int64
	RegisterTimestamp   int64
	LastOnlineTimestamp int64
	SupporterExpiry     int64
	SilenceEnd          int64
	SilenceReason       string
	Privileges          Privileges
	Notes               string
	Country             string
	Frozen              bool
	FreezeEnd           int64
}

// SafeName normalises a username the way it is stored in username_safe.
func SafeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Restricted reports whether the account is visible to other players.
func (u *User) Restricted() bool {
	return !u.Privileges.Has(PrivUserPublic)
}

// Banned reports whether the account can log in at all.
func (u *User) Banned() bool {
	return !u.Privileges.Has(PrivUserNormal)
}

// SupporterActive reports whether supporter time remains at now.
func (u *User) SupporterActive(now time.Time) bool {
	return u.SupporterExpiry > now.Unix()
}

// SilenceRemaining returns the seconds left on a silence, or 0.
func (u *User) SilenceRemaining(now time.Time) uint32 {
	left := u.SilenceEnd - now.Unix()
	if left <= 0 {
		return 0
	}
	return uint32(left)
}

// BanchoPrivileges converts the stored bitset into client privileges.
func (u *User) BanchoPrivileges(now time.Time) uint8 {
	p := BanchoPlayer
	if u.SupporterActive(now) {
		p |= BanchoSupporter
	}
	if u.Privileges.Has(PrivAdminChatMod) {
		p |= BanchoModerator
	}
	if u.Privileges.Has(PrivAdminAccess) {
		p |= BanchoDeveloper
	}
	if u.Privileges.Has(PrivUserTournament) {
		p |= BanchoTournament
	}
	return p
}
