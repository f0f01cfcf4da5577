package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/Beras-api/internal/application/ports"
)

const defaultLockTTL = 10 * time.Minute

var _ ports.JobLock = (*JobLock)(nil)

// releaseScript borra la clave solo si el valor sigue siendo el dueño.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock lock por nombre de job con SETNX + TTL. El valor es un owner aleatorio
// para que una instancia nunca libere el lock de otra.
type JobLock struct {
	client *redis.Client
	ttl    time.Duration

	mu     sync.Mutex
	owners map[string]string
}

// NewJobLock ttl <= 0 usa 10 min; debe superar la duración esperada del job.
func NewJobLock(client *redis.Client, ttl time.Duration) (*JobLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &JobLock{client: client, ttl: ttl, owners: make(map[string]string)}, nil
}

func (l *JobLock) Acquire(ctx context.Context, job string) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key("lock", job), owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.owners[job] = owner
		l.mu.Unlock()
	}
	return ok, nil
}

func (l *JobLock) Release(ctx context.Context, job string) error {
	l.mu.Lock()
	owner, ok := l.owners[job]
	delete(l.owners, job)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{key("lock", job)}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
