package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/duewell/duewell/internal/shared"
)

// ErrSessionNotFound indicates a missing or expired session token.
var ErrSessionNotFound = errors.New("auth: session not found")

// SessionData is what a session token resolves to. OrgID and Role stay
// empty until the user selects an organization.
type SessionData struct {
	UserID uuid.UUID   `json:"user_id"`
	OrgID  uuid.UUID   `json:"org_id"`
	Role   shared.Role `json:"role"`
}

// SessionManager stores bearer-token sessions in Redis.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, ttl: ttl}
}

// Create stores the session and returns its opaque token.
func (sm *SessionManager) Create(ctx context.Context, data SessionData) (string, error) {
	token := uuid.NewString()
	if err := sm.write(ctx, token, data); err != nil {
		return "", err
	}
	return token, nil
}

// Get resolves a token to session data.
func (sm *SessionManager) Get(ctx context.Context, token string) (SessionData, error) {
	raw, err := sm.client.Get(ctx, sm.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionData{}, ErrSessionNotFound
		}
		return SessionData{}, err
	}
	var data SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return SessionData{}, err
	}
	return data, nil
}

// Update replaces the session payload, keeping the token. Used when the
// user selects or switches organization.
func (sm *SessionManager) Update(ctx context.Context, token string, data SessionData) error {
	if _, err := sm.Get(ctx, token); err != nil {
		return err
	}
	return sm.write(ctx, token, data)
}

// Delete removes the session.
func (sm *SessionManager) Delete(ctx context.Context, token string) error {
	err := sm.client.Del(ctx, sm.key(token)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

func (sm *SessionManager) write(ctx context.Context, token string, data SessionData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return sm.client.Set(ctx, sm.key(token), payload, sm.ttl).Err()
}

func (sm *SessionManager) key(token string) string {
	return "session:" + token
}
