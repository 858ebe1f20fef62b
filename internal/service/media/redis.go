package media

import (
	"context"
	"time"

	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/service/cache"
)

type redisMeta struct {
	MIMEType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
}

// RedisStore keeps media in Redis so several server replicas can serve it.
// Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	cache *cache.CacheService
}

func NewRedisStore(c *cache.CacheService) *RedisStore {
	return &RedisStore{cache: c}
}

func dataKey(id string) string { return "media:" + id + ":data" }
func metaKey(id string) string { return "media:" + id + ":meta" }

func (s *RedisStore) Put(ctx context.Context, obj domain.MediaObject, ttl time.Duration) error {
	if err := s.cache.SetBytes(ctx, dataKey(obj.ID), obj.Data, ttl); err != nil {
		return err
	}
	return s.cache.Set(ctx, metaKey(obj.ID), redisMeta{MIMEType: obj.MIMEType, CreatedAt: obj.CreatedAt}, ttl)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.MediaObject, error) {
	var meta redisMeta
	found, err := s.cache.Get(ctx, metaKey(id), &meta)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(id)
	}

	data, err := s.cache.GetBytes(ctx, dataKey(id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, notFound(id)
	}

	return &domain.MediaObject{
		ID:        id,
		MIMEType:  meta.MIMEType,
		Data:      data,
		CreatedAt: meta.CreatedAt,
	}, nil
}

func (s *RedisStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	found, err := s.cache.Expire(ctx, metaKey(id), ttl)
	if err != nil {
		return err
	}
	if !found {
		return notFound(id)
	}
	if _, err := s.cache.Expire(ctx, dataKey(id), ttl); err != nil {
		return err
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.cache.Del(ctx, dataKey(id), metaKey(id))
}
