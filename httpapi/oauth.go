package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/dualAuth/provider/google"
	"github.com/gin-gonic/gin"
)

const (
	stateCookieName = "__dualauth_oauth_state"
	pkceCookieName  = "__dualauth_oauth_pkce"
	oauthCookieTTL  = 5 * time.Minute
)

func (s *Server) setOAuthCookie(c *gin.Context, name, value string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/oauth/google",
		HttpOnly: true,
		Secure:   !s.opts.InsecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func (s *Server) oauthLogin(c *gin.Context) {
	state, err := google.NewState()
	if err != nil {
		s.fail(c, "oauth state", err)
		return
	}
	verifier := google.NewVerifier()

	s.setOAuthCookie(c, stateCookieName, state, oauthCookieTTL)
	s.setOAuthCookie(c, pkceCookieName, verifier, oauthCookieTTL)

	c.Redirect(http.StatusFound, s.opts.Google.AuthCodeURL(state, verifier))
}

func (s *Server) oauthCallback(c *gin.Context) {
	state, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || c.Query("state") != state {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid state"})
		return
	}
	verifier, err := c.Cookie(pkceCookieName)
	if err != nil || verifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing pkce verifier"})
		return
	}

	// single use
	s.setOAuthCookie(c, stateCookieName, "", -time.Second)
	s.setOAuthCookie(c, pkceCookieName, "", -time.Second)

	if e := c.Query("error"); e != "" {
		s.logger.Printf("dualAuth: oauth callback error=%s desc=%q", e, c.Query("error_description"))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "authentication failed"})
		return
	}
	code := c.Query("code")
	if code == "" {
		badRequest(c, "missing code")
		return
	}

	identity, err := s.opts.Google.ExchangeCode(c.Request.Context(), code, verifier)
	if err != nil {
		s.logger.Printf("dualAuth: oauth exchange failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "authentication failed"})
		return
	}
	if !identity.EmailVerified || identity.Email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "email not verified"})
		return
	}

	res, err := s.engine.FederatedLogin(requestContext(c), identity.Email, identity.Name, s.opts.Google.Name())
	if err != nil {
		s.fail(c, "federated login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"token":    res.Token,
		"user":     res.User,
		"created":  res.Created,
		"provider": s.opts.Google.Name(),
	})
}
