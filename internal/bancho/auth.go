package bancho

import (
	"context"
	"errors"
	"time"

	"github.com/soumetsu-project/soumetsu/internal/events"
	"github.com/soumetsu-project/soumetsu/internal/geoloc"
	"github.com/soumetsu-project/soumetsu/internal/handlers"
	"github.com/soumetsu-project/soumetsu/internal/protocol"
	"github.com/soumetsu-project/soumetsu/internal/session"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

// FailedToken is sent as cho-token when a login is rejected.
const FailedToken = "no"

// Login authenticates a plaintext login body and, on success, creates the
// session and returns its token with the initial packet burst. On failure
// the token is FailedToken and the response carries a negative login code.
func (s *Service) Login(ctx context.Context, body []byte, ip string) (token string, resp []byte) {
	req, err := ParseLoginRequest(body)
	if err != nil {
		s.logger.Debug().Err(err).Str("ip", ip).Msg("rejecting malformed login")
		return s.loginFailed(ctx, "", ip, protocol.LoginFailed, "malformed")
	}

	user, err := s.deps.Users.FetchByName(ctx, req.Username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", req.Username).Msg("user lookup failed")
		return s.loginFailed(ctx, req.Username, ip, protocol.LoginServerError, "server_error")
	}
	if user == nil {
		return s.loginFailed(ctx, req.Username, ip, protocol.LoginFailed, "bad_credentials")
	}
	if !util.CheckPasswordMD5(user.PasswordHash, req.PasswordMD5) {
		return s.loginFailed(ctx, req.Username, ip, protocol.LoginFailed, "bad_credentials")
	}
	if user.Banned() {
		return s.loginFailed(ctx, req.Username, ip, protocol.LoginBanned, "banned")
	}

	h := req.Hashes
	if err := s.deps.HWIDs.Record(ctx, user.ID, h.AdaptersMD5, h.UninstallMD5, h.DiskMD5); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to record hwid")
	}

	opts := session.Options{
		MailboxLimit:  s.cfg.MailboxLimit,
		UTCOffset:     req.UTCOffset,
		CountryID:     geoloc.CountryID(user.Country),
		ClientVersion: req.ClientVersion,
		BlockDMs:      req.PMPrivate,
	}
	country := user.Country
	if loc, err := s.deps.Geo.Lookup(ip); err == nil {
		opts.Longitude = float32(loc.Longitude)
		opts.Latitude = float32(loc.Latitude)
		if loc.CountryCode != geoloc.UnknownCountry {
			country = loc.CountryCode
			opts.CountryID = geoloc.CountryID(loc.CountryCode)
		}
	} else if !errors.Is(err, geoloc.ErrNoResult) && !errors.Is(err, geoloc.ErrNotLoaded) {
		s.logger.Warn().Err(err).Str("ip", ip).Msg("geolocation failed")
	}

	sess := session.New(user, opts)
	if prev := s.sessions.Add(sess); prev != nil {
		prev.Send(protocol.Notification("You logged in from another location."))
		s.Destroy(ctx, prev, events.ReasonReplaced)
	}
	s.deps.Metrics.SessionOpened()

	now := time.Now()
	resp = s.welcome(sess, now)

	mainStream, _ := s.streams.Get(handlers.MainStream)
	if !user.Restricted() && mainStream != nil {
		announce := append(protocol.UserPresence(sess.Presence(now)), protocol.UserStats(sess.Stats())...)
		mainStream.Broadcast(announce)
	}
	if mainStream != nil {
		mainStream.Add(sess)
	}

	if err := s.deps.Users.UpdateLastOnline(ctx, user.ID, now.Unix()); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to update last online")
	}

	s.deps.Metrics.LoginResult("ok")
	s.emit(ctx, events.EventSessionCreated, events.SessionPayload{
		Token:    sess.Token(),
		UserID:   sess.UserID(),
		Username: user.Name,
		IP:       ip,
		Country:  country,
	})
	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Name).
		Str("version", req.ClientVersion).
		Str("country", country).
		Msg("user logged in")

	return sess.Token(), resp
}

// welcome builds the packets a client expects right after a successful
// login, and joins the auto-join channels.
func (s *Service) welcome(sess *session.Session, now time.Time) []byte {
	user := sess.User()
	b := protocol.ProtocolVersion(s.cfg.ProtocolVersion)
	b = append(b, protocol.LoginResponse(sess.UserID())...)
	b = append(b, protocol.BanchoPrivileges(user.BanchoPrivileges(now))...)
	if user.Restricted() {
		b = append(b, protocol.RestrictNotify()...)
	}
	b = append(b, protocol.SilenceEnd(user.SilenceRemaining(now))...)
	if msg := s.WelcomeMessage(); msg != "" {
		b = append(b, protocol.Notification(msg)...)
	}

	for _, ch := range s.cfg.Channels {
		st, ok := s.streams.Get(ch.Name)
		if !ok {
			continue
		}
		if ch.AutoJoin {
			st.Add(sess)
			b = append(b, protocol.ChannelJoinSuccess(ch.Name)...)
		}
		b = append(b, protocol.ChannelInfo(ch.Name, st.Topic(), int16(st.Len()))...)
	}
	b = append(b, protocol.ChannelInfoEnd()...)

	b = append(b, protocol.UserPresence(sess.Presence(now))...)
	b = append(b, protocol.UserStats(sess.Stats())...)
	b = append(b, protocol.FriendsList(nil)...)

	for _, other := range s.sessions.All() {
		if other.Token() == sess.Token() || other.User().Restricted() {
			continue
		}
		b = append(b, protocol.UserPresence(other.Presence(now))...)
		b = append(b, protocol.UserStats(other.Stats())...)
	}
	return b
}

func (s *Service) loginFailed(ctx context.Context, username, ip string, code int32, result string) (string, []byte) {
	s.deps.Metrics.LoginResult(result)
	s.emit(ctx, events.EventLoginFailed, events.LoginFailedPayload{Username: username, IP: ip, Code: code})
	resp := protocol.LoginResponse(code)
	if code == protocol.LoginServerError {
		resp = append(resp, protocol.Notification("The server could not process your login. Try again later.")...)
	}
	return FailedToken, resp
}
