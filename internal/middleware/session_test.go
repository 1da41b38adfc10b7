package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	"github.com/noah-isme/sma-substitution-api/pkg/erpclient"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
)

type sessionProbe struct {
	session models.Session
	token   string
	logKey  string
}

func newSessionRouter(tokens *service.TokenService, probe *sessionProbe) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Session(tokens))
	r.GET("/probe", func(c *gin.Context) {
		probe.session = SessionFrom(c)
		probe.token = erpclient.TokenFrom(c.Request.Context())
		probe.logKey = c.GetString(logger.SessionContextKey)
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestSessionWithoutTokenIsKeyedByClientCookie(t *testing.T) {
	probe := &sessionProbe{}
	r := newSessionRouter(service.NewTokenService(""), probe)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, strings.HasPrefix(probe.session.Key, service.AnonymousSession+":"))
	assert.Empty(t, probe.token)
	assert.Equal(t, probe.session.Key, probe.logKey)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AnonymousCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	first := probe.session.Key

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, first, probe.session.Key)
	assert.Empty(t, w.Result().Cookies())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.NotEqual(t, first, probe.session.Key)
}

func TestSessionReplacesMalformedClientCookie(t *testing.T) {
	probe := &sessionProbe{}
	r := newSessionRouter(service.NewTokenService(""), probe)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: AnonymousCookie, Value: "user:42"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, probe.session.Key, "user:42")
	require.Len(t, w.Result().Cookies(), 1)
}

func TestSessionForwardsOpaqueToken(t *testing.T) {
	probe := &sessionProbe{}
	r := newSessionRouter(service.NewTokenService(""), probe)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "opaque-token", probe.token)
	assert.Contains(t, probe.session.Key, "token:")
}

func TestSessionRejectsMalformedHeader(t *testing.T) {
	probe := &sessionProbe{}
	r := newSessionRouter(service.NewTokenService(""), probe)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionVerifiesSignedToken(t *testing.T) {
	secret := "test-secret"
	claims := models.TokenClaims{
		UserID: "42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	probe := &sessionProbe{}
	r := newSessionRouter(service.NewTokenService(secret), probe)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "user:42", probe.session.Key)
	assert.Equal(t, signed, probe.token)

	bad := httptest.NewRequest(http.MethodGet, "/probe", nil)
	bad.Header.Set("Authorization", "Bearer "+signed+"x")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, bad)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
