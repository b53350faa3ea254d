package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"readinglist/internal/domain"
	"readinglist/internal/repository"
	"readinglist/pkg/utils"
)

const (
	retitleQueueKey      = "readinglist:retitle"
	retitlePendingPrefix = "retitle:pending:"

	// DefaultPendingTTL bounds how long a task blocks re-enqueueing the same URL
	// if a worker dies before calling Done.
	DefaultPendingTTL = time.Hour
)

// NewRedisClient builds a client and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	return rdb, nil
}

// RedisStore keeps the retitle queue in a Redis list.
type RedisStore struct {
	client     *redis.Client
	pendingTTL time.Duration
}

var _ repository.RetitleQueue = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, pendingTTL time.Duration) *RedisStore {
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	return &RedisStore{client: client, pendingTTL: pendingTTL}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) pendingKey(url string) string {
	return retitlePendingPrefix + utils.HashURL(url)
}

// Push adds a task to the left side of the list unless the URL is already pending.
func (s *RedisStore) Push(ctx context.Context, task domain.RetitleTask) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.pendingKey(task.URL), task.ArticleID, s.pendingTTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return false, err
	}
	if err := s.client.LPush(ctx, retitleQueueKey, payload).Err(); err != nil {
		s.client.Del(ctx, s.pendingKey(task.URL))
		return false, err
	}
	return true, nil
}

// Pop removes a task from the right side of the list, blocking up to timeout.
func (s *RedisStore) Pop(ctx context.Context, timeout time.Duration) (*domain.RetitleTask, error) {
	res, err := s.client.BRPop(ctx, timeout, retitleQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// res is [key, value].
	var task domain.RetitleTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("decode retitle task: %w", err)
	}
	return &task, nil
}

func (s *RedisStore) Done(ctx context.Context, task domain.RetitleTask) error {
	return s.client.Del(ctx, s.pendingKey(task.URL)).Err()
}

func (s *RedisStore) Size(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, retitleQueueKey).Result()
}
