package middleware

import (
	"net/http"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/gin-gonic/gin"
)

const ginPrincipalKey = "dualauth.principal"

// GinPrincipal returns the principal stored by GinGuard.
func GinPrincipal(c *gin.Context) (*dualAuth.Principal, bool) {
	v, ok := c.Get(ginPrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*dualAuth.Principal)
	return p, ok
}

// GinBearerShape is RequireBearerShape for gin.
func GinBearerShape() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "token missing")
			return
		}
		if !WellFormedBearer(token) {
			abort(c, http.StatusUnauthorized, "token malformed")
			return
		}
		c.Next()
	}
}

// GinGuard is Guard for gin. The principal is available through
// GinPrincipal and PrincipalFromContext(c.Request.Context()).
func GinGuard(engine *dualAuth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if engine == nil || !ok {
			abort(c, http.StatusUnauthorized, "token missing")
			return
		}

		ctx := ClientContext(c.Request)
		p, err := engine.VerifyToken(ctx, token)
		if err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set(ginPrincipalKey, p)
		c.Request = c.Request.WithContext(WithPrincipal(ctx, p))
		c.Next()
	}
}

// GinRequireAdmin must run after GinGuard.
func GinRequireAdmin(engine *dualAuth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GinPrincipal(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		if engine == nil || p.Role != engine.Config().Security.AdminRole {
			abort(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}
