package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AppSessionStore reads the sessions the login service writes. Create exists
// for that service and for tests.
type AppSessionStore struct {
	kv  KV
	ttl time.Duration
	now func() time.Time
}

func NewAppSessionStore(kv KV, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{kv: kv, ttl: ttl, now: time.Now}
}

type AppSession struct {
	UserID    string `json:"uid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

var ErrSessionExpired = errors.New("session expired")

func key(id string) string { return fmt.Sprintf("app:sess:%s", id) }

func (s *AppSessionStore) Create(ctx context.Context, id, userID string) error {
	now := s.now()
	b, err := json.Marshal(AppSession{
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key(id), b, s.ttl)
}

// Get returns ErrNotFound for unknown ids and ErrSessionExpired when the
// stored expiry has passed even though the key is still present.
func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	b, err := s.kv.Get(ctx, key(id))
	if err != nil {
		return nil, err
	}
	var as AppSession
	if err := json.Unmarshal(b, &as); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if as.ExpiresAt > 0 && s.now().Unix() >= as.ExpiresAt {
		return nil, ErrSessionExpired
	}
	return &as, nil
}

func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, key(id))
}
