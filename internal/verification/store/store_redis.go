package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"credex/internal/verification/models"
	id "credex/pkg/domain"
	"credex/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix     = "credex:verification:session:"
	correlationKeyPrefix = "credex:verification:correlation:"
	sessionIndexKey      = "credex:verification:sessions"
)

// RedisStore persists sessions as JSON values. The correlation index and the
// creation-ordered index are written in the same MULTI/EXEC as the session.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + string(sessionID)
}

func correlationKey(correlationID string) string {
	return correlationKeyPrefix + correlationID
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := sessionKey(session.ID)
	watched := []string{key}
	if session.CorrelationID != "" {
		watched = append(watched, correlationKey(session.CorrelationID))
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, watched...).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return sentinel.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if session.CorrelationID != "" {
				pipe.Set(ctx, correlationKey(session.CorrelationID), string(session.ID), 0)
			}
			pipe.ZAdd(ctx, sessionIndexKey, redis.Z{
				Score:  float64(session.CreatedAt.UnixNano()),
				Member: string(session.ID),
			})
			return nil
		})
		return err
	}, watched...)
	switch {
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	case err != nil:
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get resolves key as a session id first, then as a correlation id.
func (s *RedisStore) Get(ctx context.Context, key string) (*models.Session, error) {
	session, err := s.load(ctx, id.SessionID(key))
	if !errors.Is(err, sentinel.ErrNotFound) {
		return session, err
	}
	sid, err := s.client.Get(ctx, correlationKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve correlation id: %w", err)
	}
	return s.load(ctx, id.SessionID(sid))
}

func (s *RedisStore) load(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Save overwrites an existing session. The existence check and the write are
// one optimistic transaction so a concurrent Delete is not resurrected.
func (s *RedisStore) Save(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := sessionKey(session.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return sentinel.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("save session: %w", err)
	}
	return err
}

// List returns sessions in creation order.
func (s *RedisStore) List(ctx context.Context) ([]*models.Session, error) {
	ids, err := s.client.ZRange(ctx, sessionIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Session{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, sid := range ids {
		cmds[i] = pipe.Get(ctx, sessionKey(id.SessionID(sid)))
	}
	// Index members whose record is gone surface as redis.Nil and are skipped.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	out := make([]*models.Session, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		out = append(out, &session)
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID))
		if session.CorrelationID != "" {
			pipe.Del(ctx, correlationKey(session.CorrelationID))
		}
		pipe.ZRem(ctx, sessionIndexKey, string(sessionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
