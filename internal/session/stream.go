package session

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/soumetsu-project/soumetsu/internal/util"
)

// Stream is a named broadcast group. A token is a member at most once.
type Stream struct {
	name string

	mu      sync.RWMutex
	topic   string
	members map[string]*Session
}

// NewStream creates an empty stream.
func NewStream(name string) *Stream {
	return &Stream{
		name:    name,
		members: make(map[string]*Session),
	}
}

func (st *Stream) Name() string { return st.name }

func (st *Stream) Topic() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.topic
}

func (st *Stream) SetTopic(topic string) {
	st.mu.Lock()
	st.topic = topic
	st.mu.Unlock()
}

// Add inserts s. Adding a token that is already present replaces the stored
// reference.
func (st *Stream) Add(s *Session) {
	st.mu.Lock()
	st.members[s.token] = s
	st.mu.Unlock()
}

// Remove drops token and reports whether it was a member.
func (st *Stream) Remove(token string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.members[token]; !ok {
		return false
	}
	delete(st.members, token)
	return true
}

func (st *Stream) Contains(token string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.members[token]
	return ok
}

func (st *Stream) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.members)
}

// Members returns a snapshot of the current members.
func (st *Stream) Members() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.members))
	for _, s := range st.members {
		out = append(out, s)
	}
	return out
}

// Broadcast sends b to every member. Members are snapshotted first so no
// stream lock is held while mailboxes are written.
func (st *Stream) Broadcast(b []byte) {
	for _, s := range st.Members() {
		s.Send(b)
	}
}

// BroadcastExcept sends b to every member except token.
func (st *Stream) BroadcastExcept(b []byte, token string) {
	for _, s := range st.Members() {
		if s.token != token {
			s.Send(b)
		}
	}
}

// StreamManager maps names to streams for the lifetime of the server.
// Streams are only removed explicitly.
type StreamManager struct {
	mu      sync.RWMutex
	streams map[string]*Stream
	logger  zerolog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		streams: make(map[string]*Stream),
		logger:  util.ComponentLogger("streams"),
	}
}

// Create registers a new empty stream under name, replacing any existing
// stream of that name. Members of a replaced stream are not carried over.
func (m *StreamManager) Create(name string) *Stream {
	st := NewStream(name)

	m.mu.Lock()
	old, replaced := m.streams[name]
	m.streams[name] = st
	m.mu.Unlock()

	if replaced {
		m.logger.Warn().
			Str("stream", name).
			Int("dropped_members", old.Len()).
			Msg("stream replaced by create")
	}
	return st
}

func (m *StreamManager) Get(name string) (*Stream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.streams[name]
	return st, ok
}

// Remove deletes the stream and reports whether it existed.
func (m *StreamManager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.streams[name]; !ok {
		return false
	}
	delete(m.streams, name)
	return true
}

// Names returns stream names in sorted order.
func (m *StreamManager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.streams))
	for name := range m.streams {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// All returns a snapshot of every stream, sorted by name.
func (m *StreamManager) All() []*Stream {
	m.mu.RLock()
	out := make([]*Stream, 0, len(m.streams))
	for _, st := range m.streams {
		out = append(out, st)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// RemoveFromAll drops token from every stream and returns how many streams
// it was removed from.
func (m *StreamManager) RemoveFromAll(token string) int {
	var n int
	for _, st := range m.All() {
		if st.Remove(token) {
			n++
		}
	}
	return n
}
