package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider    = (*MockAuthProvider)(nil)
	_ ports.SessionStore    = (*MemorySessionStore)(nil)
	_ ports.ProfileStore    = (*MemoryProfileStore)(nil)
	_ ports.ActivityStore   = (*MemoryActivityStore)(nil)
	_ ports.CredentialStore = (*MemoryCredentialStore)(nil)
	_ ports.RoleAssigner    = StaticRoleAssigner(nil)
)

// ErrNotFound is returned by doubles when an entity is not present.
// It carries the not_found code like the real stores.
var ErrNotFound error = apperrors.NotFound("not found")

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)

	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.Identity

	mu        sync.Mutex
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: defaultIdentity(),
	}
}

func defaultIdentity() domainauth.Identity {
	return domainauth.Identity{
		UserID:         "mock-user-1",
		Email:          "mock.user@example.com",
		FullName:       "Mock User",
		EmailConfirmed: true,
		Provider:       "mock",
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if m.DefaultUser.UserID == "" {
		return defaultIdentity(), nil
	}
	return m.DefaultUser, nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session

	// GetErr, when set, is returned by Get.
	GetErr error
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.Session)}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	if m.GetErr != nil {
		return domainauth.Session{}, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if id == "" || !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports how many sessions are stored.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MemoryProfileStore is an in-memory profile store that mirrors the
// Postgres semantics: the stored role survives a conflicting insert, emails
// are unique case-insensitively, and roles are read back in canonical form.
type MemoryProfileStore struct {
	mu       sync.Mutex
	profiles map[string]domainauth.Profile

	// Failure injection.
	GetErr         error
	UpsertErr      error
	RecordLoginErr error

	// GetHook, when set, runs before Get and may panic or block to simulate a bad store.
	GetHook func(ctx context.Context, id string)

	Upserts int
}

// NewMemoryProfileStore creates a store seeded with profiles.
func NewMemoryProfileStore(seed ...domainauth.Profile) *MemoryProfileStore {
	m := &MemoryProfileStore{profiles: make(map[string]domainauth.Profile)}
	for _, p := range seed {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *MemoryProfileStore) Get(ctx context.Context, id string) (domainauth.Profile, error) {
	if m.GetHook != nil {
		m.GetHook(ctx, id)
	}
	if m.GetErr != nil {
		return domainauth.Profile{}, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domainauth.Profile{}, ErrNotFound
	}
	return canonical(p), nil
}

func (m *MemoryProfileStore) GetByEmail(_ context.Context, email string) (domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byEmailLocked(email, ""); ok {
		return canonical(p), nil
	}
	return domainauth.Profile{}, ErrNotFound
}

func (m *MemoryProfileStore) Upsert(_ context.Context, p domainauth.Profile) (domainauth.Profile, error) {
	if m.UpsertErr != nil {
		return domainauth.Profile{}, m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmailLocked(p.Email, p.ID); taken {
		return domainauth.Profile{}, apperrors.Conflict("profile with this email already exists")
	}
	m.Upserts++
	if existing, ok := m.profiles[p.ID]; ok {
		existing.Email = p.Email
		if existing.FullName == "" {
			existing.FullName = p.FullName
		}
		m.profiles[p.ID] = existing
		return canonical(existing), nil
	}
	if p.Role == "" {
		p.Role = domainauth.RoleStudent
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.profiles[p.ID] = p
	return canonical(p), nil
}

// byEmailLocked finds a profile other than exceptID holding email.
func (m *MemoryProfileStore) byEmailLocked(email, exceptID string) (domainauth.Profile, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domainauth.Profile{}, false
	}
	for id, p := range m.profiles {
		if id != exceptID && strings.EqualFold(p.Email, email) {
			return p, true
		}
	}
	return domainauth.Profile{}, false
}

func canonical(p domainauth.Profile) domainauth.Profile {
	p.Role = domainauth.RoleOrDefault(string(p.Role))
	return p
}

func (m *MemoryProfileStore) RecordLogin(_ context.Context, id string, at time.Time) error {
	if m.RecordLoginErr != nil {
		return m.RecordLoginErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.LastLogin = &at
	p.FirstLogin = false
	m.profiles[id] = p
	return nil
}

func (m *MemoryProfileStore) SetRole(_ context.Context, id string, role domainauth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.Role = role
	m.profiles[id] = p
	return nil
}

// Profile returns the stored profile, bypassing failure injection.
func (m *MemoryProfileStore) Profile(id string) (domainauth.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	return p, ok
}

// MemoryActivityStore records activities in memory.
type MemoryActivityStore struct {
	mu         sync.Mutex
	activities []domainauth.Activity

	// RecordErr, when set, is returned by Record and nothing is stored.
	RecordErr error
}

// NewMemoryActivityStore creates an empty activity store.
func NewMemoryActivityStore() *MemoryActivityStore {
	return &MemoryActivityStore{}
}

func (m *MemoryActivityStore) Record(_ context.Context, a domainauth.Activity) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, a)
	return nil
}

func (m *MemoryActivityStore) ListByUser(_ context.Context, userID string, limit int) ([]domainauth.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domainauth.Activity
	for i := len(m.activities) - 1; i >= 0; i-- {
		if m.activities[i].UserID == userID {
			out = append(out, m.activities[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns every recorded activity in insertion order.
func (m *MemoryActivityStore) All() []domainauth.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domainauth.Activity(nil), m.activities...)
}

// MemoryCredentialStore keeps credentials keyed by lower-cased email.
type MemoryCredentialStore struct {
	mu    sync.Mutex
	creds map[string]domainauth.Credential
}

// NewMemoryCredentialStore creates an empty credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: make(map[string]domainauth.Credential)}
}

func (m *MemoryCredentialStore) GetByEmail(_ context.Context, email string) (domainauth.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domainauth.Credential{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryCredentialStore) Create(_ context.Context, c domainauth.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(c.Email))
	if _, exists := m.creds[key]; exists {
		return apperrors.Conflict("credential already exists")
	}
	m.creds[key] = c
	return nil
}

// StaticRoleAssigner maps exact emails to roles; everyone else is a student.
type StaticRoleAssigner map[string]domainauth.Role

func (s StaticRoleAssigner) AssignRole(email string) domainauth.Role {
	if r, ok := s[strings.ToLower(strings.TrimSpace(email))]; ok {
		return r
	}
	return domainauth.RoleStudent
}
