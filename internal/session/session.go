package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/phillip-england/lotdesk/internal/security"
)

var ErrNotFound = errors.New("session not found")

// User is the backend's user record. Ids are json.Number because the
// backend sends them as numbers or numeric strings.
type User struct {
	ID       json.Number `json:"id"`
	Nombre   string      `json:"nombre"`
	Apellido string      `json:"apellido"`
	Email    string      `json:"email"`
	Rol      string      `json:"rol"`
	Telefono string      `json:"telefono,omitempty"`
	EquipoID json.Number `json:"equipoId,omitempty"`
}

func (u User) Role() Role { return NormalizeRole(u.Rol) }

// IsAdmin covers Admin and SuperAdmin.
func (u User) IsAdmin() bool {
	r := u.Role()
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (u User) IsAgent() bool { return u.Role() == RoleAgent }

func (u User) FullName() string {
	return strings.TrimSpace(u.Nombre + " " + u.Apellido)
}

func (u User) Can(m Module) bool { return Allowed(u.Role(), m) }

// Credentials are replayed to the backend on every call.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	ID          string
	User        User
	Credentials Credentials
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// record is what the stores persist. Credentials only ever leave the
// process sealed.
type record struct {
	User      User      `json:"user"`
	Sealed    []byte    `json:"sealed"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type backend interface {
	put(ctx context.Context, id string, data []byte, ttl time.Duration) error
	get(ctx context.Context, id string) ([]byte, error)
	del(ctx context.Context, id string) error
}

// Store creates and resolves dashboard sessions.
type Store struct {
	backend backend
	sealer  *security.Sealer
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(sealer *security.Sealer, ttl time.Duration) *Store {
	return &Store{backend: &memoryBackend{items: map[string]memoryItem{}}, sealer: sealer, ttl: ttl, now: time.Now}
}

func NewRedisStore(client *redis.Client, prefix string, sealer *security.Sealer, ttl time.Duration) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Store{backend: &redisBackend{client: client, prefix: prefix + "session:"}, sealer: sealer, ttl: ttl, now: time.Now}
}

func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) Create(ctx context.Context, user User, creds Credentials) (*Session, error) {
	id := uuid.NewString()
	plain, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	sealed, err := s.sealer.Seal(plain, []byte(id))
	if err != nil {
		return nil, fmt.Errorf("seal credentials: %w", err)
	}

	now := s.now().UTC()
	rec := record{User: user, Sealed: sealed, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := s.backend.put(ctx, id, data, s.ttl); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &Session{ID: id, User: user, Credentials: creds, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	data, err := s.backend.get(ctx, id)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !s.now().Before(rec.ExpiresAt) {
		_ = s.backend.del(ctx, id)
		return nil, ErrNotFound
	}
	plain, err := s.sealer.Open(rec.Sealed, []byte(id))
	if err != nil {
		_ = s.backend.del(ctx, id)
		return nil, ErrNotFound
	}
	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &Session{ID: id, User: rec.User, Credentials: creds, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.backend.del(ctx, id)
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

type memoryBackend struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

func (m *memoryBackend) put(_ context.Context, id string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = memoryItem{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memoryBackend) get(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(item.expiresAt) {
		delete(m.items, id)
		return nil, ErrNotFound
	}
	return item.data, nil
}

func (m *memoryBackend) del(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

type redisBackend struct {
	client *redis.Client
	prefix string
}

func (r *redisBackend) put(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+id, data, ttl).Err()
}

func (r *redisBackend) get(ctx context.Context, id string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (r *redisBackend) del(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.prefix+id).Err()
}
