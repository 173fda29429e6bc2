package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/MrEthical07/dualAuth/middleware"
	"github.com/MrEthical07/dualAuth/provider/google"
	"github.com/gin-gonic/gin"
)

// IdentityProvider is the slice of an OIDC provider the OAuth routes use.
// *google.Provider implements it.
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state, verifier string) string
	ExchangeCode(ctx context.Context, code, verifier string) (*google.Identity, error)
}

// Options configures optional routes.
type Options struct {
	// Google enables /oauth/google/login and /oauth/google/callback.
	Google IdentityProvider
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// InsecureCookies drops the Secure flag from OAuth cookies for plain
	// HTTP development setups.
	InsecureCookies bool
	Logger          *log.Logger
}

type Server struct {
	engine *dualAuth.Engine
	opts   Options
	logger *log.Logger
}

func New(engine *dualAuth.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Server{engine: engine, opts: opts, logger: logger}
}

// Router returns a gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.Register(r)
	return r
}

// Register adds the routes to r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/login", s.login)
	r.POST("/2fa/verify", s.verifyCode)
	r.POST("/register", s.register)
	r.POST("/password/assess", s.assessPassword)
	r.POST("/password/reset/confirm", s.confirmReset)

	authed := r.Group("/", middleware.GinBearerShape(), middleware.GinGuard(s.engine))
	authed.GET("/verify-token", s.verifyToken)
	authed.POST("/logout", s.logout)
	authed.GET("/session/check", s.checkSession)
	authed.POST("/password/change", s.changePassword)

	admin := authed.Group("/", middleware.GinRequireAdmin(s.engine))
	admin.POST("/session/force-logout", s.forceLogout)
	admin.GET("/session/stats", s.sessionStats)
	admin.POST("/admin-reset-password", s.adminResetPassword)

	if s.opts.Google != nil {
		r.GET("/oauth/google/login", s.oauthLogin)
		r.GET("/oauth/google/callback", s.oauthCallback)
	}
	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}
}

func principal(c *gin.Context) *dualAuth.Principal {
	p, _ := middleware.GinPrincipal(c)
	return p
}

func requestContext(c *gin.Context) context.Context {
	return middleware.ClientContext(c.Request)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
}

// fail answers err according to its kind. Internal errors are logged and
// never described to the client.
func (s *Server) fail(c *gin.Context, op string, err error) {
	kind := dualAuth.KindOf(err)
	if kind == dualAuth.KindInternal {
		s.logger.Printf("dualAuth: %s %s: %s failed: %v", c.Request.Method, c.FullPath(), op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
		return
	}

	body := gin.H{"success": false, "message": err.Error()}

	var active *dualAuth.SessionActiveError
	if errors.As(err, &active) {
		body["remainingMinutes"] = active.RemainingMinutes()
	}
	var rejected *dualAuth.CodeRejectedError
	if errors.As(err, &rejected) {
		body["hint"] = rejected.Hint
	}
	var policy *dualAuth.PasswordPolicyError
	if errors.As(err, &policy) {
		body["assessment"] = policy.Assessment
	}

	c.JSON(kind.HTTPStatus(), body)
}
