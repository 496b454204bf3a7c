package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soumetsu-project/soumetsu/internal/bancho"
	"github.com/soumetsu-project/soumetsu/internal/protocol"
)

const (
	headerOsuToken    = "osu-token"
	headerChoToken    = "cho-token"
	headerChoProtocol = "cho-protocol"
	banchoContentType = "text/html; charset=UTF-8"
)

// handleBanner answers browsers that open the bancho address.
func (s *Server) handleBanner(c *gin.Context) {
	c.String(http.StatusOK, "Running Soumetsu!")
}

// handleBancho serves the client's POST loop. Without an osu-token header
// the body is a login; with one it is a batch of packets. Protocol errors
// are reported in-band, so the status is always 200 once the body is read.
func (s *Server) handleBancho(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, protocol.MaxBodySize+1))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	c.Header(headerChoProtocol, strconv.Itoa(int(s.svc.ProtocolVersion())))

	token := c.GetHeader(headerOsuToken)
	if token == "" {
		tok, resp := s.svc.Login(c.Request.Context(), body, c.ClientIP())
		c.Header(headerChoToken, tok)
		c.Data(http.StatusOK, banchoContentType, resp)
		return
	}

	resp, err := s.svc.Poll(c.Request.Context(), token, body)
	switch {
	case err == nil:
	case errors.Is(err, bancho.ErrUnknownSession), errors.Is(err, bancho.ErrSessionOverflowed):
		s.logger.Debug().Err(err).Str("client_ip", c.ClientIP()).Msg("poll rejected")
	default:
		s.logger.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("poll failed")
	}
	c.Data(http.StatusOK, banchoContentType, resp)
}
