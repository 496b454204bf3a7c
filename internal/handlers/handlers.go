// Package handlers implements the client packets the server understands and
// registers them on a router.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/soumetsu-project/soumetsu/internal/events"
	"github.com/soumetsu-project/soumetsu/internal/protocol"
	"github.com/soumetsu-project/soumetsu/internal/router"
	"github.com/soumetsu-project/soumetsu/internal/session"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

// Internal streams. Chat channels are every stream whose name starts with #.
const (
	MainStream  = "main"
	LobbyStream = "lobby"
)

// logoutGrace ignores the logout packet some clients send right after
// logging in.
var logoutGrace = time.Second

// Closer tears a session down: registry, streams, and the logout broadcast.
type Closer interface {
	Destroy(ctx context.Context, s *session.Session, reason events.DestroyReason)
}

// Deps are the shared objects handlers operate on.
type Deps struct {
	Sessions *session.Registry
	Streams  *session.StreamManager
	Closer   Closer
	Events   *events.EventBus
}

type handlers struct {
	Deps
	logger zerolog.Logger
}

// IsChannel reports whether a stream name is a user-visible chat channel.
func IsChannel(name string) bool {
	return strings.HasPrefix(name, "#")
}

// Register binds every handler on rt.
func Register(rt *router.Router, d Deps) {
	h := &handlers{Deps: d, logger: util.ComponentLogger("handlers")}

	router.NoBody(rt, protocol.OsuHeartbeat, h.heartbeat)
	router.Handle(rt, protocol.OsuChannelJoin, protocol.DecodeChannelName, h.channelJoin)
	router.Handle(rt, protocol.OsuChannelPart, protocol.DecodeChannelName, h.channelPart)
	router.Handle(rt, protocol.OsuSendPublicMessage, protocol.DecodeMessage, h.publicMessage)
	router.Handle(rt, protocol.OsuSendPrivateMessage, protocol.DecodeMessage, h.privateMessage)
	router.Handle(rt, protocol.OsuChangeAction, protocol.DecodeStatusChange, h.changeAction)
	router.NoBody(rt, protocol.OsuRequestStatusUpdate, h.requestStatusUpdate)
	router.Handle(rt, protocol.OsuUserStatsRequest, protocol.DecodeUserIDs, h.userStatsRequest)
	router.Handle(rt, protocol.OsuLogout, protocol.DecodeLogout, h.logout)
}

func (h *handlers) emit(t events.EventType, payload interface{}) {
	h.Events.Emit(context.Background(), events.New(t, "handlers", payload))
}

func (h *handlers) heartbeat(*session.Session) ([]byte, error) {
	return nil, nil
}

func (h *handlers) channelJoin(s *session.Session, name string) ([]byte, error) {
	st, ok := h.Streams.Get(name)
	if !ok || !IsChannel(name) {
		return protocol.Notification("Channel " + name + " does not exist."), nil
	}
	st.Add(s)
	h.announceChannel(st)
	h.emit(events.EventStreamJoined, events.StreamPayload{Stream: name, UserID: s.UserID(), Token: s.Token()})
	return protocol.ChannelJoinSuccess(name), nil
}

func (h *handlers) channelPart(s *session.Session, name string) ([]byte, error) {
	st, ok := h.Streams.Get(name)
	if !ok || !IsChannel(name) {
		return nil, nil
	}
	if st.Remove(s.Token()) {
		h.announceChannel(st)
		h.emit(events.EventStreamLeft, events.StreamPayload{Stream: name, UserID: s.UserID(), Token: s.Token()})
	}
	return nil, nil
}

// announceChannel pushes the channel's current member count to everyone.
func (h *handlers) announceChannel(st *session.Stream) {
	main, ok := h.Streams.Get(MainStream)
	if !ok {
		return
	}
	main.Broadcast(protocol.ChannelInfo(st.Name(), st.Topic(), int16(st.Len())))
}

// canChat reports whether s may send messages right now.
func (h *handlers) canChat(s *session.Session) bool {
	u := s.User()
	return !u.Restricted() && u.SilenceRemaining(time.Now()) == 0
}

func (h *handlers) publicMessage(s *session.Session, m protocol.Message) ([]byte, error) {
	if m.Content == "" || !h.canChat(s) {
		return nil, nil
	}
	st, ok := h.Streams.Get(m.Target)
	if !ok || !IsChannel(m.Target) {
		return nil, nil
	}
	if !st.Contains(s.Token()) {
		h.logger.Debug().
			Str("channel", m.Target).
			Int32("user_id", s.UserID()).
			Msg("message to channel the sender has not joined")
		return nil, nil
	}

	pkt := protocol.MessageReceived(s.Username(), s.UserID(), m.Content, m.Target)
	st.BroadcastExcept(pkt, s.Token())
	h.emit(events.EventChatMessage, events.ChatPayload{
		SenderID: s.UserID(),
		Sender:   s.Username(),
		Target:   m.Target,
		Length:   len(m.Content),
	})
	return nil, nil
}

func (h *handlers) privateMessage(s *session.Session, m protocol.Message) ([]byte, error) {
	if m.Content == "" || !h.canChat(s) {
		return nil, nil
	}
	target, ok := h.Sessions.ByName(m.Target)
	if !ok {
		return protocol.Notification(m.Target + " is not online."), nil
	}
	if target.Options().BlockDMs {
		return nil, nil
	}

	target.Send(protocol.MessageReceived(s.Username(), s.UserID(), m.Content, target.Username()))
	h.emit(events.EventChatMessage, events.ChatPayload{
		SenderID: s.UserID(),
		Sender:   s.Username(),
		Target:   target.Username(),
		Private:  true,
		Length:   len(m.Content),
	})
	return nil, nil
}

func (h *handlers) changeAction(s *session.Session, sc protocol.StatusChange) ([]byte, error) {
	s.SetStatus(session.Status{
		Action:     sc.Action,
		ActionText: sc.ActionText,
		BeatmapMD5: sc.BeatmapMD5,
		Mods:       sc.Mods,
		Mode:       sc.Mode,
		BeatmapID:  sc.BeatmapID,
	})

	if main, ok := h.Streams.Get(MainStream); ok {
		main.Broadcast(protocol.UserStats(s.Stats()))
	}
	h.emit(events.EventStatusChange, events.StatusPayload{
		UserID:    s.UserID(),
		Action:    sc.Action,
		BeatmapID: sc.BeatmapID,
		Mode:      sc.Mode,
	})
	return nil, nil
}

func (h *handlers) requestStatusUpdate(s *session.Session) ([]byte, error) {
	return protocol.UserStats(s.Stats()), nil
}

func (h *handlers) userStatsRequest(s *session.Session, ids []int32) ([]byte, error) {
	var out []byte
	for _, id := range ids {
		if id == s.UserID() {
			continue
		}
		other, ok := h.Sessions.ByUserID(int64(id))
		if !ok {
			continue
		}
		out = append(out, protocol.UserStats(other.Stats())...)
	}
	return out, nil
}

func (h *handlers) logout(s *session.Session, _ int32) ([]byte, error) {
	if time.Since(s.CreatedAt()) < logoutGrace {
		return nil, nil
	}
	h.Closer.Destroy(context.Background(), s, events.ReasonLogout)
	return nil, nil
}
