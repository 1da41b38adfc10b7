package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

const sessionPreferenceKey = "session:pref:"

type jsonStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SessionRepository persists the operator's last teacher and date selection.
type SessionRepository struct {
	store jsonStore
}

// NewSessionRepository builds the repository on top of a JSON key/value store.
func NewSessionRepository(store jsonStore) *SessionRepository {
	return &SessionRepository{store: store}
}

// Get returns the stored preference, or nil when there is none.
func (r *SessionRepository) Get(ctx context.Context, sessionKey string) (*models.SessionPreference, error) {
	var pref models.SessionPreference
	if err := r.store.Get(ctx, sessionPreferenceKey+sessionKey, &pref); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session preference: %w", err)
	}
	return &pref, nil
}

// Save stores pref for ttl.
func (r *SessionRepository) Save(ctx context.Context, sessionKey string, pref models.SessionPreference, ttl time.Duration) error {
	if err := r.store.Set(ctx, sessionPreferenceKey+sessionKey, pref, ttl); err != nil {
		return fmt.Errorf("save session preference: %w", err)
	}
	return nil
}
