// Package router dispatches the packets of a request body to registered
// handlers and collects their output.
package router

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/soumetsu-project/soumetsu/internal/protocol"
	"github.com/soumetsu-project/soumetsu/internal/session"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

// HandlerFunc handles one packet. The reader is positioned at the start of
// the packet body and the handler must consume exactly the body length.
type HandlerFunc func(s *session.Session, r *protocol.Reader) ([]byte, error)

// Observer receives dispatch outcomes, typically for metrics.
type Observer interface {
	PacketHandled(id protocol.PacketID, registered bool)
	DispatchFailed(err error)
}

type nopObserver struct{}

func (nopObserver) PacketHandled(protocol.PacketID, bool) {}
func (nopObserver) DispatchFailed(error) {}

// Router maps packet ids to handlers. Handlers are registered at startup;
// after Freeze the table is read-only and safe for concurrent Dispatch.
type Router struct {
	handlers map[protocol.PacketID]HandlerFunc
	frozen   atomic.Bool
	observer Observer
	logger   zerolog.Logger
}

// New creates an empty router. A nil observer is ignored.
func New(observer Observer) *Router {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Router{
		handlers: make(map[protocol.PacketID]HandlerFunc),
		observer: observer,
		logger:   util.ComponentLogger("router"),
	}
}

// Register binds fn to id. Registering an id twice replaces the earlier
// handler. Registration after Freeze is ignored.
func (rt *Router) Register(id protocol.PacketID, fn HandlerFunc) {
	if rt.frozen.Load() {
		rt.logger.Warn().Stringer("packet", id).Msg("handler registered after freeze, ignoring")
		return
	}
	if _, exists := rt.handlers[id]; exists {
		rt.logger.Warn().Stringer("packet", id).Msg("duplicate handler registration, replacing")
	}
	rt.handlers[id] = fn
}

// Freeze makes the handler table read-only.
func (rt *Router) Freeze() {
	rt.frozen.Store(true)
	rt.logger.Debug().Int("handlers", len(rt.handlers)).Msg("router frozen")
}

// Registered reports whether id has a handler.
func (rt *Router) Registered(id protocol.PacketID) bool {
	_, ok := rt.handlers[id]
	return ok
}

// Len returns the number of registered handlers.
func (rt *Router) Len() int {
	return len(rt.handlers)
}

// Dispatch runs every packet in body against its handler, in order, and
// returns the concatenated handler output. Packets without a handler are
// skipped. On error the output accumulated so far is returned with it.
func (rt *Router) Dispatch(s *session.Session, body []byte) ([]byte, error) {
	r := protocol.NewReader(body)
	var out []byte

	for !r.Empty() {
		id, length, err := r.ReadHeader()
		if err != nil {
			rt.observer.DispatchFailed(err)
			return out, err
		}

		fn, ok := rt.handlers[id]
		if !ok {
			if err := r.Skip(int(length)); err != nil {
				err = fmt.Errorf("skip %s body: %w", id, err)
				rt.observer.DispatchFailed(err)
				return out, err
			}
			rt.observer.PacketHandled(id, false)
			rt.logger.Debug().Stringer("packet", id).Uint32("length", length).Msg("skipped unhandled packet")
			continue
		}

		start := r.Pos()
		resp, err := fn(s, r)
		if err != nil {
			err = fmt.Errorf("handle %s: %w", id, err)
			rt.observer.DispatchFailed(err)
			return out, err
		}
		if consumed := r.Pos() - start; consumed != int(length) {
			rt.logger.Warn().
				Stringer("packet", id).
				Uint32("length", length).
				Int("consumed", consumed).
				Msg("handler body consumption mismatch")
		}
		rt.observer.PacketHandled(id, true)
		out = append(out, resp...)
	}
	return out, nil
}

// Handle registers a handler whose body is decoded into T before fn runs.
func Handle[T any](rt *Router, id protocol.PacketID, decode func(*protocol.Reader) (T, error), fn func(*session.Session, T) ([]byte, error)) {
	rt.Register(id, func(s *session.Session, r *protocol.Reader) ([]byte, error) {
		v, err := decode(r)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return fn(s, v)
	})
}

// NoBody registers a handler for a packet without a body.
func NoBody(rt *Router, id protocol.PacketID, fn func(*session.Session) ([]byte, error)) {
	rt.Register(id, func(s *session.Session, _ *protocol.Reader) ([]byte, error) {
		return fn(s)
	})
}
