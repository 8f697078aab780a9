package auth

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
)

// sessionWatchTries bounds the optimistic retries of Create.
const sessionWatchTries = 20

// SessionStore wraps Redis for refresh-session management. Each user has at
// most one live session: session:<sid> -> userID and user_session:<userID> -> sid.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(sid string) string     { return "session:" + sid }
func userSessionKey(uid string) string { return "user_session:" + uid }

// Create registers sid as userID's live session, replacing any previous one.
// The previous sid is read under WATCH so concurrent logins cannot both
// replace the same session and leave one behind.
func (s *SessionStore) Create(ctx context.Context, userID, sid string, ttl time.Duration) error {
	key := userSessionKey(userID)
	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if old != "" {
				p.Del(ctx, sessionKey(old))
			}
			p.Set(ctx, sessionKey(sid), userID, ttl)
			p.Set(ctx, key, sid, ttl)
			return nil
		})
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.rdb.Watch(ctx, txf, key)
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(sessionWatchTries))
	return err
}

// Lookup returns the userID for a session, or "" if not found / expired.
func (s *SessionStore) Lookup(ctx context.Context, sid string) (string, error) {
	val, err := s.rdb.Get(ctx, sessionKey(sid)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// RevokeUser removes userID's live session, if any.
func (s *SessionStore) RevokeUser(ctx context.Context, userID string) error {
	sid, err := s.rdb.Get(ctx, userSessionKey(userID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return s.rdb.Del(ctx, sessionKey(sid), userSessionKey(userID)).Err()
}
