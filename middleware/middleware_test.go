package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/MrEthical07/dualAuth/connectivity"
	"github.com/MrEthical07/dualAuth/password"
	"github.com/MrEthical07/dualAuth/userstore"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine     *dualAuth.Engine
	userToken  string
	adminToken string
	userID     string
	users      *userstore.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	require.NoError(t, err)
	users, err := userstore.NewMemoryStore(hasher)
	require.NoError(t, err)

	ctx := context.Background()
	u, err := users.CreateUser(ctx, dualAuth.NewAccount{Email: "ana@example.com", Name: "Ana", Password: "Correct#Horse42"})
	require.NoError(t, err)
	a, err := users.CreateUser(ctx, dualAuth.NewAccount{Email: "boss@example.com", Name: "Boss", Password: "Admin#Secret77x", Role: "admin"})
	require.NoError(t, err)

	cfg := dualAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	engine, err := dualAuth.New().
		WithConfig(cfg).
		WithUserRepository(users).
		WithConnectivity(connectivity.Static(true)).
		WithAuditSink(dualAuth.NoOpSink{}).
		WithLogger(log.New(io.Discard, "", 0)).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	ut, err := engine.IssueFederatedToken(ctx, u.ID, "google")
	require.NoError(t, err)
	at, err := engine.IssueFederatedToken(ctx, a.ID, "google")
	require.NoError(t, err)

	return &fixture{engine: engine, userToken: ut.Token, adminToken: at.Token, userID: u.ID, users: users}
}

func request(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)

	token, ok = BearerToken("bearer   abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	for _, v := range []string{"", "Bearer", "Bearer   ", "Basic abc", "Token abc.def.ghi"} {
		_, ok := BearerToken(v)
		assert.False(t, ok, "value %q", v)
	}
}

func TestWellFormedBearer(t *testing.T) {
	assert.True(t, WellFormedBearer("eyJhbGciOi.eyJzdWIiOi.c2lnbmF0dXJl_-"))
	for _, v := range []string{"", "a.b", "a.b.c.d", "a..c", "a.b.c=", "a.b+c.d", "a b.c.d"} {
		assert.False(t, WellFormedBearer(v), "token %q", v)
	}
}

func TestRequireBearerShape(t *testing.T) {
	reached := false
	h := RequireBearerShape()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token missing", decode(t, rec)["message"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request("not-a-jwt"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token malformed", decode(t, rec)["message"])
	assert.False(t, reached)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request("a.b.c"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, reached)
}

func TestGuardAttachesPrincipal(t *testing.T) {
	f := newFixture(t)

	var got *dualAuth.Principal
	h := Guard(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(f.userToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, f.userID, got.UserID)
	assert.Equal(t, "user", got.Role)
}

func TestGuardRejects(t *testing.T) {
	f := newFixture(t)
	h := Guard(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, token := range []string{"", "a.b.c"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, false, body["success"])
		assert.NotEmpty(t, body["message"])
	}

	f.users.Delete(f.userID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(f.userToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuardNilEngine(t *testing.T) {
	rec := httptest.NewRecorder()
	Guard(nil)(http.NotFoundHandler()).ServeHTTP(rec, request("a.b.c"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t)
	h := Guard(f.engine)(RequireAdmin(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(f.userToken))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(f.adminToken))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	RequireAdmin(f.engine)(http.NotFoundHandler()).ServeHTTP(rec, request(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:5555"
	req.Header.Set("User-Agent", "probe/1.0")
	ctx := ClientContext(req)
	assert.Equal(t, "::1", dualAuth.ClientIPFromContext(ctx))
	assert.Equal(t, "probe/1.0", dualAuth.UserAgentFromContext(ctx))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", dualAuth.ClientIPFromContext(ClientContext(req)))
}

func TestGinChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	r.GET("/me", GinBearerShape(), GinGuard(f.engine), func(c *gin.Context) {
		p, ok := GinPrincipal(c)
		require.True(t, ok)
		fromCtx, ok := PrincipalFromContext(c.Request.Context())
		require.True(t, ok)
		assert.Same(t, p, fromCtx)
		c.JSON(http.StatusOK, gin.H{"id": p.UserID})
	})
	r.GET("/admin", GinGuard(f.engine), GinRequireAdmin(f.engine), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	serve := func(path, token string) *httptest.ResponseRecorder {
		req := request(token)
		req.URL.Path = path
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("/me", f.userToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.userID, decode(t, rec)["id"])

	rec = serve("/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token malformed", decode(t, rec)["message"])

	assert.Equal(t, http.StatusUnauthorized, serve("/me", "").Code)
	assert.Equal(t, http.StatusForbidden, serve("/admin", f.userToken).Code)
	assert.Equal(t, http.StatusNoContent, serve("/admin", f.adminToken).Code)
}
