package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) logout(c *gin.Context) {
	if err := s.engine.Logout(requestContext(c), principal(c).UserID); err != nil {
		s.fail(c, "logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) checkSession(c *gin.Context) {
	status, err := s.engine.CheckSession(requestContext(c), principal(c).UserID)
	if err != nil {
		s.fail(c, "check session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": status})
}

type forceLogoutRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) forceLogout(c *gin.Context) {
	var req forceLogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := s.engine.ForceLogout(requestContext(c), principal(c).UserID, req.UserID)
	if err != nil {
		s.fail(c, "force logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

func (s *Server) sessionStats(c *gin.Context) {
	stats, err := s.engine.SessionStats(requestContext(c), principal(c).UserID)
	if err != nil {
		s.fail(c, "session stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
