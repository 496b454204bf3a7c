// Package session holds connected players, their outbound mailboxes, and the
// named streams used to fan packets out to groups of them.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/soumetsu-project/soumetsu/internal/models"
	"github.com/soumetsu-project/soumetsu/internal/protocol"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

// Status is what the client last reported it was doing.
type Status struct {
	Action     uint8
	ActionText string
	BeatmapMD5 string
	Mods       uint32
	Mode       uint8
	BeatmapID  int32
}

// Options configure a new Session.
type Options struct {
	// MailboxLimit caps buffered outbound bytes. Zero means unbounded.
	MailboxLimit  int
	UTCOffset     int8
	CountryID     uint8
	Longitude     float32
	Latitude      float32
	ClientVersion string
	BlockDMs      bool
}

// Session is one logged-in client. The user record is a read-only
// back-reference; the session owns only its mailbox and status.
type Session struct {
	token   string
	user    *models.User
	opts    Options
	created time.Time

	mu         sync.Mutex
	mailbox    []byte
	overflowed bool

	lastSeen atomic.Int64

	statusMu sync.RWMutex
	status   Status

	logger zerolog.Logger
}

// New creates a session with a fresh random token.
func New(user *models.User, opts Options) *Session {
	now := time.Now()
	s := &Session{
		token:   uuid.NewString(),
		user:    user,
		opts:    opts,
		created: now,
	}
	s.lastSeen.Store(now.UnixNano())
	s.logger = util.ComponentLogger("session").With().
		Str("token", s.token).
		Int64("user_id", user.ID).
		Logger()
	return s
}

func (s *Session) Token() string { return s.token }
func (s *Session) User() *models.User { return s.user }
func (s *Session) UserID() int32 { return int32(s.user.ID) }
func (s *Session) Username() string { return s.user.Name }
func (s *Session) Options() Options { return s.opts }
func (s *Session) CreatedAt() time.Time { return s.created }

// Send appends b to the mailbox. It never blocks. If the mailbox limit would
// be exceeded the bytes are dropped and the session is marked overflowed.
func (s *Session) Send(b []byte) {
	if len(b) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overflowed {
		return
	}
	if s.opts.MailboxLimit > 0 && len(s.mailbox)+len(b) > s.opts.MailboxLimit {
		s.overflowed = true
		s.logger.Warn().
			Int("pending", len(s.mailbox)).
			Int("dropped", len(b)).
			Int("limit", s.opts.MailboxLimit).
			Msg("mailbox overflow, session will be disconnected")
		return
	}
	s.mailbox = append(s.mailbox, b...)
}

// Drain returns the buffered bytes and empties the mailbox.
func (s *Session) Drain() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.mailbox
	s.mailbox = nil
	return out
}

// Pending returns the number of buffered bytes.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mailbox)
}

// Overflowed reports whether the mailbox limit was hit. Once set it stays set.
func (s *Session) Overflowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overflowed
}

// Touch records a poll at t.
func (s *Session) Touch(t time.Time) {
	s.lastSeen.Store(t.UnixNano())
}

// LastSeen returns the time of the last poll.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Session) SetStatus(st Status) {
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}

// Presence builds the user presence fields for this session.
func (s *Session) Presence(now time.Time) protocol.Presence {
	return protocol.Presence{
		UserID:     s.UserID(),
		Username:   s.user.Name,
		UTCOffset:  s.opts.UTCOffset,
		CountryID:  s.opts.CountryID,
		Privileges: s.user.BanchoPrivileges(now),
		Longitude:  s.opts.Longitude,
		Latitude:   s.opts.Latitude,
	}
}

// Stats builds the user stats fields for this session's current status.
// Score columns are not tracked yet and are sent as zero.
func (s *Session) Stats() protocol.Stats {
	st := s.Status()
	return protocol.Stats{
		UserID:     s.UserID(),
		ActionID:   st.Action,
		ActionText: st.ActionText,
		BeatmapMD5: st.BeatmapMD5,
		Mods:       int32(st.Mods),
		Mode:       st.Mode,
		BeatmapID:  st.BeatmapID,
	}
}
