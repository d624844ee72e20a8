package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/domain/ports/repository"
	"github.com/terminalpixel/postrchild/internal/infra/metrics"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps the per-identity session blob in Redis. The TTL
// refreshes on every save, so only idle conversations expire and an
// abandoned half-finished dialog eventually evaporates on its own.
type SessionRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionRepo(client RedisClient, ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRepo{client: client, ttl: ttl}
}

func (s *SessionRepo) sessionKey(id model.Identity) string {
	return fmt.Sprintf("session:%s", id.Key())
}

func (s *SessionRepo) Get(ctx context.Context, id model.Identity) (*model.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id))
	if err == redis.Nil {
		metrics.SessionOp("get", "miss")
		return nil, nil
	}
	if err != nil {
		metrics.SessionOp("get", "error")
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		metrics.SessionOp("get", "error")
		return nil, err
	}
	metrics.SessionOp("get", "hit")
	return &sess, nil
}

func (s *SessionRepo) Save(ctx context.Context, id model.Identity, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.sessionKey(id), data, s.ttl); err != nil {
		metrics.SessionOp("save", "error")
		return err
	}
	metrics.SessionOp("save", "ok")
	return nil
}

func (s *SessionRepo) Delete(ctx context.Context, id model.Identity) error {
	if err := s.client.Del(ctx, s.sessionKey(id)); err != nil {
		metrics.SessionOp("delete", "error")
		return err
	}
	metrics.SessionOp("delete", "ok")
	return nil
}
