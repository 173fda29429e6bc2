package httpapi

import (
	"net/http"

	"github.com/MrEthical07/dualAuth/password"
	"github.com/gin-gonic/gin"
)

type assessRequest struct {
	Password string `json:"password"`
	Name     string `json:"nombre"`
	Email    string `json:"email"`
}

func (s *Server) assessPassword(c *gin.Context) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	var info *password.UserInfo
	if req.Name != "" || req.Email != "" {
		info = &password.UserInfo{Name: req.Name, Email: req.Email}
	}
	c.JSON(http.StatusOK, s.engine.AssessPassword(req.Password, info))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	err := s.engine.ChangePassword(requestContext(c), principal(c).UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.fail(c, "change password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type confirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) confirmReset(c *gin.Context) {
	var req confirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := s.engine.ConfirmPasswordReset(requestContext(c), req.Token, req.NewPassword); err != nil {
		s.fail(c, "confirm password reset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type adminResetRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func (s *Server) adminResetPassword(c *gin.Context) {
	var req adminResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.UserID == "" && req.Email == "" {
		badRequest(c, "userId or email is required")
		return
	}

	res, err := s.engine.AdminResetPassword(requestContext(c), principal(c).UserID, req.UserID, req.Email)
	if err != nil {
		s.fail(c, "admin reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reset": res})
}
