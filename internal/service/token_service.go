package service

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// AnonymousSession is the session key used when a request carries no token
// and no client id.
const AnonymousSession = "anonymous"

// TokenService derives the operator session from the bearer token that is
// forwarded to the ERP. Tokens are never issued here.
type TokenService struct {
	secret []byte
}

// NewTokenService constructs a TokenService. With an empty secret tokens are
// treated as opaque and only hashed.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Verifies reports whether tokens are checked against a signing secret.
func (s *TokenService) Verifies() bool {
	return len(s.secret) > 0
}

// Session maps a raw bearer token to a session. An empty token yields the
// anonymous session; the ERP decides whether to accept such calls.
func (s *TokenService) Session(token string) (models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Session{Key: AnonymousSession}, nil
	}
	if !s.Verifies() {
		return models.Session{Key: hashToken(token), Token: token}, nil
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		return models.Session{}, err
	}
	owner := claims.Owner()
	if owner == "" {
		return models.Session{Key: hashToken(token), Token: token}, nil
	}
	return models.Session{Key: "user:" + owner, Token: token}, nil
}

// Anonymous keys a caller without a token by its client id so two
// such callers never share a workspace.
func (s *TokenService) Anonymous(clientID string) models.Session {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return models.Session{Key: AnonymousSession}
	}
	return models.Session{Key: AnonymousSession + ":" + clientID}
}

// ValidateToken parses and validates an HS256 access token returning the claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func hashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:16])
}
