package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConversationLocker serializa los envios sobre una misma conversacion.
// El unlock devuelto es idempotente.
type ConversationLocker interface {
	Lock(ctx context.Context, conversationID string) (func(), error)
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

type memoryConversationLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewMemoryConversationLocker devuelve un mutex por conversacion valido para una sola instancia.
func NewMemoryConversationLocker() ConversationLocker {
	return &memoryConversationLocker{
		locks: make(map[string]*lockEntry),
	}
}

func (l *memoryConversationLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[conversationID]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[conversationID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.release(conversationID, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(conversationID, e)
		return nil, ctx.Err()
	}
}

func (l *memoryConversationLocker) release(conversationID string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, conversationID)
	}
}

const redisUnlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type redisLockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisConversationLocker struct {
	client redisLockClient
	logger *zap.Logger
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewRedisConversationLocker serializa envios entre instancias con SET NX PX.
// El TTL debe superar el timeout del LLM para no liberar el lock en medio de un envio.
func NewRedisConversationLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) ConversationLocker {
	if client == nil {
		return nil
	}
	return newRedisConversationLocker(client, ttl, logger)
}

func newRedisConversationLocker(client redisLockClient, ttl time.Duration, logger *zap.Logger) *redisConversationLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisConversationLocker{
		client: client,
		logger: logger,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		prefix: "chat:lock:",
	}
}

// Lock reintenta hasta obtener el lock o hasta que ctx expire.
// Si Redis falla se continua sin lock (fail-open) para no bloquear el chat.
func (l *redisConversationLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	key := l.prefix + conversationID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			l.logger.Warn("conversation lock unavailable, continuing unlocked",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
			return func() {}, nil
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() { l.unlock(key, token) })
			}, nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *redisConversationLocker) unlock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := l.client.Eval(ctx, redisUnlockScript, []string{key}, token).Err(); err != nil {
		l.logger.Warn("conversation unlock failed", zap.String("key", key), zap.Error(err))
	}
}
