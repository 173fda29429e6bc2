package httpapi

import (
	"errors"
	"net/http"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := s.engine.Login(requestContext(c), req.Email, req.Password)
	if errors.Is(err, dualAuth.ErrInvalidCredentials) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "invalid credentials"})
		return
	}
	if err != nil {
		s.fail(c, "login", err)
		return
	}

	body := gin.H{
		"success":    true,
		"require2fa": res.RequireTwoFactor,
		"userId":     res.UserID,
		"mode":       res.Mode,
	}
	if res.OfflineCode != "" {
		body["offlineCode"] = res.OfflineCode
	}
	c.JSON(http.StatusOK, body)
}

type verifyRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

func (s *Server) verifyCode(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := s.engine.VerifyCode(requestContext(c), req.UserID, req.OTP)
	if err != nil {
		s.fail(c, "verify code", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"token":     res.Token,
		"user":      res.User,
		"mode":      res.Mode,
		"expiresAt": res.ExpiresAt,
	})
}

func (s *Server) verifyToken(c *gin.Context) {
	p := principal(c)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"user":     p,
		"authMode": p.AuthMode,
		"provider": p.Provider,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"nombre"`
	Password string `json:"password"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	u, err := s.engine.CreateAccount(requestContext(c), dualAuth.NewAccount{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if errors.Is(err, dualAuth.ErrAccountCreationDisabled) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    dualAuth.Profile{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
	})
}
