package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	"github.com/noah-isme/sma-substitution-api/pkg/erpclient"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
	"github.com/noah-isme/sma-substitution-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the operator session.
const ContextSessionKey = "currentSession"

// AnonymousCookie names the cookie that keeps callers without a token apart.
const AnonymousCookie = "substitution_client"

// Session resolves the operator session from the bearer token and forwards
// the token to the ERP through the request context. A missing token is
// tolerated; a token that fails verification is rejected.
func Session(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		var session models.Session
		if token == "" {
			session = tokens.Anonymous(anonymousClient(c))
		} else {
			var err error
			session, err = tokens.Session(token)
			if err != nil {
				response.Error(c, err)
				c.Abort()
				return
			}
		}

		c.Set(ContextSessionKey, session)
		c.Set(logger.SessionContextKey, session.Key)
		if session.Token != "" {
			c.Request = c.Request.WithContext(erpclient.WithToken(c.Request.Context(), session.Token))
		}
		c.Next()
	}
}

// anonymousClient returns the caller's client id from its cookie, issuing a
// new one when the cookie is missing or malformed.
func anonymousClient(c *gin.Context) string {
	if raw, err := c.Cookie(AnonymousCookie); err == nil {
		if id, err := uuid.Parse(raw); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AnonymousCookie, id, 0, "/", "", c.Request.TLS != nil, true)
	return id
}

// bearerToken extracts the token. An empty header is valid and yields "".
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// SessionFrom returns the session stored by Session, or the anonymous one.
func SessionFrom(c *gin.Context) models.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return models.Session{Key: service.AnonymousSession}
	}
	session, ok := value.(models.Session)
	if !ok {
		return models.Session{Key: service.AnonymousSession}
	}
	return session
}
