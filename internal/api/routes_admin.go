package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soumetsu-project/soumetsu/internal/config"
	"github.com/soumetsu-project/soumetsu/internal/geoloc"
	"github.com/soumetsu-project/soumetsu/internal/handlers"
	"github.com/soumetsu-project/soumetsu/internal/session"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

// SessionInfo is the admin view of one session.
type SessionInfo struct {
	Token         string    `json:"token"`
	UserID        int32     `json:"user_id"`
	Username      string    `json:"username"`
	Country       string    `json:"country"`
	ClientVersion string    `json:"client_version"`
	Action        uint8     `json:"action"`
	Pending       int       `json:"pending_bytes"`
	CreatedAt     time.Time `json:"created_at"`
	LastSeen      time.Time `json:"last_seen"`
}

// StreamInfo is the admin view of one stream.
type StreamInfo struct {
	Name    string `json:"name"`
	Topic   string `json:"topic"`
	Members int    `json:"members"`
}

func sessionInfo(s *session.Session) SessionInfo {
	opts := s.Options()
	return SessionInfo{
		Token:         s.Token(),
		UserID:        s.UserID(),
		Username:      s.Username(),
		Country:       geoloc.CountryCode(opts.CountryID),
		ClientVersion: opts.ClientVersion,
		Action:        s.Status().Action,
		Pending:       s.Pending(),
		CreatedAt:     s.CreatedAt(),
		LastSeen:      s.LastSeen(),
	}
}

// handleListSessions lists online sessions ordered by user id.
func (s *Server) handleListSessions(c *gin.Context) {
	all := s.svc.Sessions().All()
	out := make([]SessionInfo, 0, len(all))
	for _, sess := range all {
		out = append(out, sessionInfo(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })

	c.JSON(http.StatusOK, gin.H{
		"sessions": out,
		"total":    len(out),
	})
}

// handleListStreams lists streams by name.
func (s *Server) handleListStreams(c *gin.Context) {
	names := s.svc.Streams().Names()
	out := make([]StreamInfo, 0, len(names))
	for _, name := range names {
		st, ok := s.svc.Streams().Get(name)
		if !ok {
			continue
		}
		out = append(out, StreamInfo{Name: name, Topic: st.Topic(), Members: st.Len()})
	}

	c.JSON(http.StatusOK, gin.H{
		"streams": out,
		"total":   len(out),
	})
}

// handleSystemUsage reports host and process resource use.
func (s *Server) handleSystemUsage(c *gin.Context) {
	cpu, err := util.GetCPUUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	mem, err := util.GetMemoryUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	proc, err := util.GetProcessStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cpu_percent": cpu,
		"memory":      mem,
		"process":     proc,
	})
}

type kickRequest struct {
	Reason string `json:"reason"`
}

// handleKick disconnects one session.
func (s *Server) handleKick(c *gin.Context) {
	var req kickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	token := c.Param("token")
	if !s.svc.Kick(c.Request.Context(), token, req.Reason) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	s.logger.Info().Str("token", token).Str("reason", req.Reason).Msg("session kicked by admin")
	c.JSON(http.StatusOK, gin.H{"kicked": token})
}

type announceRequest struct {
	Stream  string `json:"stream"`
	Message string `json:"message" binding:"required"`
}

// handleAnnounce sends a notification to a stream, main by default.
func (s *Server) handleAnnounce(c *gin.Context) {
	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if req.Stream == "" {
		req.Stream = handlers.MainStream
	}

	n, ok := s.svc.Announce(req.Stream, req.Message)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stream":     req.Stream,
		"recipients": n,
	})
}

// handleGetConfig returns the running configuration with secrets masked and
// the result of validating it.
func (s *Server) handleGetConfig(c *gin.Context) {
	res := config.Validate(s.cfg)
	c.JSON(http.StatusOK, gin.H{
		"config":   s.cfg.Redacted(),
		"valid":    res.IsValid(),
		"errors":   res.Errors,
		"warnings": res.Warnings,
	})
}

type welcomeRequest struct {
	Message string `json:"message"`
}

// handleSetWelcome replaces the login notification and persists it when
// the configuration came from a file.
func (s *Server) handleSetWelcome(c *gin.Context) {
	var req welcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	s.svc.SetWelcomeMessage(req.Message)
	s.cfg.SetWelcomeMessage(req.Message)

	saved := false
	if s.cfg.Path() != "" {
		if err := s.cfg.Save(); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist welcome message")
		} else {
			saved = true
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"welcome_message": req.Message,
		"saved":           saved,
	})
}
