package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soumetsu-project/soumetsu/internal/handlers"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "soumetsu",
		"version": Version,
	})
}

// handleServerInfo returns basic server and host information.
func (s *Server) handleServerInfo(c *gin.Context) {
	sysInfo := util.GetSystemInfo()
	online := 0
	if main, ok := s.svc.Streams().Get(handlers.MainStream); ok {
		online = main.Len()
	}

	c.JSON(http.StatusOK, gin.H{
		"online_users":     online,
		"sessions":         s.svc.Sessions().Len(),
		"streams":          len(s.svc.Streams().Names()),
		"protocol_version": s.svc.ProtocolVersion(),
		"os":               sysInfo.OS,
		"cpu_model":        sysInfo.CPUModel,
		"cpu_cores":        sysInfo.CPUCores,
		"total_memory_mb":  sysInfo.TotalMemory,
		"uptime_sec":       sysInfo.UptimeSec,
	})
}

// handleVersion returns the build version.
func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": Version,
		"name":    "Soumetsu",
	})
}
