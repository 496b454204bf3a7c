// Package bancho glues the packet core to its collaborators: it logs
// players in, serves their polls, and tears sessions down.
package bancho

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/soumetsu-project/soumetsu/internal/events"
	"github.com/soumetsu-project/soumetsu/internal/geoloc"
	"github.com/soumetsu-project/soumetsu/internal/handlers"
	"github.com/soumetsu-project/soumetsu/internal/models"
	"github.com/soumetsu-project/soumetsu/internal/protocol"
	"github.com/soumetsu-project/soumetsu/internal/router"
	"github.com/soumetsu-project/soumetsu/internal/session"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

var (
	// ErrUnknownSession is returned by Poll for tokens with no session.
	ErrUnknownSession = errors.New("bancho: unknown session")
	// ErrSessionOverflowed is returned by Poll when the session was dropped
	// because its mailbox exceeded the limit.
	ErrSessionOverflowed = errors.New("bancho: session mailbox overflowed")
)

// UserStore is the part of the user repository the service needs.
type UserStore interface {
	FetchByName(ctx context.Context, name string) (*models.User, error)
	UpdateLastOnline(ctx context.Context, id, unix int64) error
}

// HWIDStore records client fingerprints.
type HWIDStore interface {
	Record(ctx context.Context, userID int64, mac, unique, disk string) error
}

// Locator resolves client IPs.
type Locator interface {
	Lookup(ip string) (*geoloc.Result, error)
}

// Recorder receives service metrics.
type Recorder interface {
	router.Observer
	LoginResult(result string)
	ObservePoll(d time.Duration)
	SessionOpened()
	SessionClosed(reason string)
	MailboxOverflow()
}

// Channel is a chat channel created at startup.
type Channel struct {
	Name     string
	Topic    string
	AutoJoin bool
}

// Config holds service settings.
type Config struct {
	MailboxLimit    int
	ProtocolVersion int32
	WelcomeMessage  string
	Channels        []Channel
}

// DefaultChannels are used when Config.Channels is empty.
var DefaultChannels = []Channel{
	{Name: "#osu", Topic: "General discussion.", AutoJoin: true},
	{Name: "#announce", Topic: "Announcements from the server.", AutoJoin: true},
}

// Deps are the collaborators. Events and Metrics are optional.
type Deps struct {
	Users   UserStore
	HWIDs   HWIDStore
	Geo     Locator
	Events  *events.EventBus
	Metrics Recorder
}

// farewellTTL is how long the final mailbox of a kicked or replaced
// session waits for the client's next poll.
const farewellTTL = time.Minute

type farewell struct {
	data    []byte
	expires time.Time
}

// Service owns the registry, streams, and router for one server.
type Service struct {
	cfgMu    sync.RWMutex
	cfg      Config
	deps     Deps
	sessions *session.Registry
	streams  *session.StreamManager
	router   *router.Router
	logger   zerolog.Logger

	farewellMu sync.Mutex
	farewells  map[string]farewell
}

// NewService creates the default streams, registers packet handlers, and
// freezes the router.
func NewService(cfg Config, deps Deps) *Service {
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = 19
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = DefaultChannels
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}

	s := &Service{
		cfg:      cfg,
		deps:     deps,
		sessions: session.NewRegistry(),
		streams:  session.NewStreamManager(),
		router:   router.New(deps.Metrics),
		logger:   util.ComponentLogger("bancho"),

		farewells: make(map[string]farewell),
	}

	s.streams.Create(handlers.MainStream)
	s.streams.Create(handlers.LobbyStream)
	for _, ch := range cfg.Channels {
		s.streams.Create(ch.Name).SetTopic(ch.Topic)
	}

	handlers.Register(s.router, handlers.Deps{
		Sessions: s.sessions,
		Streams:  s.streams,
		Closer:   s,
		Events:   deps.Events,
	})
	s.router.Freeze()
	return s
}

func (s *Service) Sessions() *session.Registry { return s.sessions }
func (s *Service) Streams() *session.StreamManager { return s.streams }

// ProtocolVersion is the bancho protocol version announced to clients.
func (s *Service) ProtocolVersion() int32 { return s.cfg.ProtocolVersion }

// WelcomeMessage returns the notification sent after login.
func (s *Service) WelcomeMessage() string {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.WelcomeMessage
}

// SetWelcomeMessage replaces the notification sent after login. An empty
// message disables it.
func (s *Service) SetWelcomeMessage(msg string) {
	s.cfgMu.Lock()
	s.cfg.WelcomeMessage = msg
	s.cfgMu.Unlock()
	s.emit(context.Background(), events.EventConfigChanged, events.ConfigChangedPayload{
		Section: "bancho",
		Key:     "welcome_message",
		Value:   msg,
	})
}

// Kick sends reason to the session as a notification, then destroys it.
// The client receives the notification on its next poll.
func (s *Service) Kick(ctx context.Context, token, reason string) bool {
	sess, ok := s.sessions.Get(token)
	if !ok {
		return false
	}
	if reason != "" {
		sess.Send(protocol.Notification(reason))
	}
	s.Destroy(ctx, sess, events.ReasonKicked)
	return true
}

// Announce queues a notification for every member of the named stream and
// returns how many sessions received it.
func (s *Service) Announce(streamName, msg string) (int, bool) {
	st, ok := s.streams.Get(streamName)
	if !ok {
		return 0, false
	}
	st.Broadcast(protocol.Notification(msg))
	return st.Len(), true
}

func (s *Service) emit(ctx context.Context, t events.EventType, payload interface{}) {
	s.deps.Events.Emit(ctx, events.New(t, "bancho", payload))
}

// Poll handles one request from a logged-in client and returns the response
// body: handler output followed by everything queued for the session. A
// dispatch error still returns whatever was produced.
func (s *Service) Poll(ctx context.Context, token string, body []byte) ([]byte, error) {
	start := time.Now()
	defer func() { s.deps.Metrics.ObservePoll(time.Since(start)) }()

	sess, ok := s.sessions.Get(token)
	if !ok {
		if last, ok := s.takeFarewell(token, start); ok {
			return append(last, protocol.BanchoRestart(0)...), ErrUnknownSession
		}
		resp := append(protocol.BanchoRestart(0), protocol.Notification("The server has restarted.")...)
		return resp, ErrUnknownSession
	}
	if sess.Overflowed() {
		s.Destroy(ctx, sess, events.ReasonOverflow)
		resp := append(protocol.Notification("You were disconnected for not keeping up."), protocol.BanchoRestart(0)...)
		return resp, ErrSessionOverflowed
	}
	if len(body) > protocol.MaxBodySize {
		return sess.Drain(), protocol.ErrBodyTooLarge
	}

	sess.Touch(start)
	out, err := s.router.Dispatch(sess, body)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int32("user_id", sess.UserID()).
			Int("body", len(body)).
			Msg("dispatch aborted")
	}
	return append(out, sess.Drain()...), err
}

// Logout destroys the session for token and reports whether it existed.
func (s *Service) Logout(ctx context.Context, token string) bool {
	sess, ok := s.sessions.Get(token)
	if !ok {
		return false
	}
	s.Destroy(ctx, sess, events.ReasonLogout)
	return true
}

// Destroy removes sess from the registry and every stream and tells the
// remaining players it left. Destroying twice is a no-op.
func (s *Service) Destroy(ctx context.Context, sess *session.Session, reason events.DestroyReason) {
	if _, ok := s.sessions.Remove(sess.Token()); !ok {
		return
	}
	left := s.streams.RemoveFromAll(sess.Token())

	switch reason {
	case events.ReasonKicked, events.ReasonReplaced, events.ReasonShutdown:
		s.keepFarewell(sess.Token(), sess.Drain(), time.Now())
	}

	// A replaced session's user is still online under the new token.
	if reason != events.ReasonReplaced {
		if main, ok := s.streams.Get(handlers.MainStream); ok {
			main.Broadcast(protocol.Logout(sess.UserID()))
		}
		if err := s.deps.Users.UpdateLastOnline(ctx, sess.User().ID, time.Now().Unix()); err != nil {
			s.logger.Warn().Err(err).Int32("user_id", sess.UserID()).Msg("failed to update last online")
		}
	}

	s.deps.Metrics.SessionClosed(reason.String())
	if reason == events.ReasonOverflow {
		s.deps.Metrics.MailboxOverflow()
		s.emit(ctx, events.EventMailboxOverflow, events.SessionPayload{
			Token:    sess.Token(),
			UserID:   sess.UserID(),
			Username: sess.Username(),
			Reason:   reason,
		})
	}
	s.emit(ctx, events.EventSessionDestroyed, events.SessionPayload{
		Token:    sess.Token(),
		UserID:   sess.UserID(),
		Username: sess.Username(),
		Reason:   reason,
	})

	s.logger.Info().
		Int32("user_id", sess.UserID()).
		Str("username", sess.Username()).
		Stringer("reason", reason).
		Int("streams", left).
		Msg("session destroyed")
}

// keepFarewell holds the last packets of a destroyed session so its next
// poll can still deliver them.
func (s *Service) keepFarewell(token string, data []byte, now time.Time) {
	if len(data) == 0 {
		return
	}
	s.farewellMu.Lock()
	s.farewells[token] = farewell{data: data, expires: now.Add(farewellTTL)}
	s.farewellMu.Unlock()
}

// takeFarewell returns and forgets the held packets for token.
func (s *Service) takeFarewell(token string, now time.Time) ([]byte, bool) {
	s.farewellMu.Lock()
	defer s.farewellMu.Unlock()
	f, ok := s.farewells[token]
	if !ok {
		return nil, false
	}
	delete(s.farewells, token)
	if now.After(f.expires) {
		return nil, false
	}
	return f.data, true
}

func (s *Service) pruneFarewells(now time.Time) {
	s.farewellMu.Lock()
	defer s.farewellMu.Unlock()
	for token, f := range s.farewells {
		if now.After(f.expires) {
			delete(s.farewells, token)
		}
	}
}

// Expire destroys sessions that have not polled within timeout and sessions
// whose mailbox overflowed. It returns how many were removed. Held
// farewells past their TTL are dropped too.
func (s *Service) Expire(ctx context.Context, timeout time.Duration) int {
	s.pruneFarewells(time.Now())
	cutoff := time.Now().Add(-timeout)
	var n int
	for _, sess := range s.sessions.All() {
		switch {
		case sess.Overflowed():
			s.Destroy(ctx, sess, events.ReasonOverflow)
		case sess.LastSeen().Before(cutoff):
			s.Destroy(ctx, sess, events.ReasonTimeout)
		default:
			continue
		}
		n++
	}
	return n
}

// Shutdown notifies and removes every session.
func (s *Service) Shutdown(ctx context.Context) {
	for _, sess := range s.sessions.All() {
		sess.Send(protocol.Notification("The server is shutting down."))
		s.Destroy(ctx, sess, events.ReasonShutdown)
	}
}

type nopRecorder struct{}

func (nopRecorder) PacketHandled(protocol.PacketID, bool) {}
func (nopRecorder) DispatchFailed(error) {}
func (nopRecorder) LoginResult(string) {}
func (nopRecorder) ObservePoll(time.Duration) {}
func (nopRecorder) SessionOpened() {}
func (nopRecorder) SessionClosed(string) {}
func (nopRecorder) MailboxOverflow() {}
