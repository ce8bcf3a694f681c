package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/redisclient"

	"github.com/go-redis/redis/v8"
)

// SessionRegistry stores in-flight import sessions, keyed by session id.
// A session is retained for a fixed window after creation regardless of
// completion; Get returns (nil, nil) for unknown or expired sessions.
type SessionRegistry interface {
	Create(ctx context.Context, session *models.ImportSession) error
	Get(ctx context.Context, id string) (*models.ImportSession, error)
	Update(ctx context.Context, session *models.ImportSession) error
	Delete(ctx context.Context, id string) error
	SweepExpired(ctx context.Context) int
}

// MemoryRegistry is a mutex-guarded in-process session registry
type MemoryRegistry struct {
	mu        sync.RWMutex
	sessions  map[string]*models.ImportSession
	retention time.Duration
	now       func() time.Time
}

// NewMemoryRegistry creates an in-memory registry with the given retention
// window
func NewMemoryRegistry(retention time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		sessions:  make(map[string]*models.ImportSession),
		retention: retention,
		now:       time.Now,
	}
}

func (r *MemoryRegistry) Create(_ context.Context, session *models.ImportSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = copySession(session)
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*models.ImportSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok || r.expired(session) {
		return nil, nil
	}
	return copySession(session), nil
}

func (r *MemoryRegistry) Update(_ context.Context, session *models.ImportSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return fmt.Errorf("import session not found: %s", session.ID)
	}
	r.sessions[session.ID] = copySession(session)
	return nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// SweepExpired drops sessions past their retention window and returns the
// number removed
func (r *MemoryRegistry) SweepExpired(_ context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if r.expired(session) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *MemoryRegistry) expired(session *models.ImportSession) bool {
	return r.now().Sub(session.StartedAt) > r.retention
}

func copySession(s *models.ImportSession) *models.ImportSession {
	c := *s
	c.Items = make([]models.ImportItem, len(s.Items))
	copy(c.Items, s.Items)
	return &c
}

// RedisRegistry stores sessions in Redis with a TTL bound to the retention
// window, surviving process restarts and safe across replicas.
type RedisRegistry struct {
	client    *redisclient.Client
	retention time.Duration
}

// NewRedisRegistry creates a Redis-backed registry with the given retention
// window
func NewRedisRegistry(client *redisclient.Client, retention time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, retention: retention}
}

func sessionKey(id string) string {
	return "import:session:" + id
}

func (r *RedisRegistry) Create(ctx context.Context, session *models.ImportSession) error {
	return r.client.SetJSON(ctx, sessionKey(session.ID), session, r.retention)
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (*models.ImportSession, error) {
	var session models.ImportSession
	err := r.client.GetJSON(ctx, sessionKey(id), &session)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load import session: %w", err)
	}
	return &session, nil
}

func (r *RedisRegistry) Update(ctx context.Context, session *models.ImportSession) error {
	remaining := r.retention - time.Since(session.StartedAt)
	if remaining <= 0 {
		return r.Delete(ctx, session.ID)
	}
	return r.client.SetJSON(ctx, sessionKey(session.ID), session, remaining)
}

func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	return r.client.Delete(ctx, sessionKey(id))
}

// SweepExpired is a no-op for Redis; key TTLs handle expiry
func (r *RedisRegistry) SweepExpired(context.Context) int {
	return 0
}
