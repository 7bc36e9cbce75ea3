package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the lock still holds our token.
var extendScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RunLock guards a document against concurrent analysis runs. The TTL bounds
// how long a crashed worker can keep a document locked.
type RunLock struct {
	client *redisv9.Client
	ttl    time.Duration

	mu     sync.Mutex
	tokens map[uint]string
}

func NewRunLock(client *redisv9.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunLock{client: client, ttl: ttl, tokens: make(map[uint]string)}
}

// Acquire returns ok=false when another run holds the document.
func (l *RunLock) Acquire(ctx context.Context, documentID uint) (func(), bool, error) {
	key := l.key(documentID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis acquire run lock failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	l.mu.Lock()
	l.tokens[documentID] = token
	l.mu.Unlock()

	release := func() {
		l.mu.Lock()
		if l.tokens[documentID] == token {
			delete(l.tokens, documentID)
		}
		l.mu.Unlock()

		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// Extend resets the TTL of a lock this process holds. held=false means the
// lock expired and may belong to another run now.
func (l *RunLock) Extend(ctx context.Context, documentID uint) (bool, error) {
	l.mu.Lock()
	token, ok := l.tokens[documentID]
	l.mu.Unlock()
	if !ok {
		return false, nil
	}

	n, err := extendScript.Run(ctx, l.client, []string{l.key(documentID)}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis extend run lock failed: %w", err)
	}
	return n == 1, nil
}

func (l *RunLock) key(documentID uint) string {
	return fmt.Sprintf("document:run:%d", documentID)
}
