package directory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Hasher turns a plaintext password into the stored hash format.
type Hasher interface {
	Hash(password string) (string, error)
}

// Memory is an in-process [Directory]. It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	hasher     Hasher
	byID       map[string]*Record
	byUsername map[string]string
}

// NewMemory returns an empty [Memory] directory. hasher is only needed by
// [Memory.Create]; pass nil when records arrive pre-hashed through Put.
func NewMemory(hasher Hasher) *Memory {
	return &Memory{
		hasher:     hasher,
		byID:       make(map[string]*Record),
		byUsername: make(map[string]string),
	}
}

func idKey(tenantID, id string) string {
	return tenantID + "\x00" + id
}

// Put stores rec, replacing any principal with the same tenant and id.
// An empty ID is filled with a new UUID. The stored ID is returned.
func (m *Memory) Put(rec Record) (string, error) {
	if rec.TenantID == "" || rec.Username == "" {
		return "", errors.New("tenant and username are required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Roles = slices.Clone(rec.Roles)

	m.mu.Lock()
	defer m.mu.Unlock()

	if ownerID, ok := m.byUsername[idKey(rec.TenantID, rec.Username)]; ok && ownerID != rec.ID {
		return "", errors.New("username already taken in tenant")
	}
	if prev, ok := m.byID[idKey(rec.TenantID, rec.ID)]; ok && prev.Username != rec.Username {
		delete(m.byUsername, idKey(rec.TenantID, prev.Username))
	}
	m.byID[idKey(rec.TenantID, rec.ID)] = &rec
	m.byUsername[idKey(rec.TenantID, rec.Username)] = rec.ID
	return rec.ID, nil
}

// Create hashes password and stores a new active principal.
func (m *Memory) Create(tenantID, username, email, password string, roles ...string) (string, error) {
	if m.hasher == nil {
		return "", errors.New("directory has no password hasher")
	}
	hash, err := m.hasher.Hash(password)
	if err != nil {
		return "", err
	}
	return m.Put(Record{
		Principal: Principal{
			TenantID: tenantID,
			Username: username,
			Email:    email,
			Roles:    roles,
			Active:   true,
		},
		PasswordHash: hash,
	})
}

// SetActive flips the active flag of a principal.
func (m *Memory) SetActive(tenantID, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[idKey(tenantID, id)]
	if !ok {
		return ErrPrincipalNotFound
	}
	rec.Active = active
	return nil
}

// SetRoles replaces the roles of a principal.
func (m *Memory) SetRoles(tenantID, id string, roles ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[idKey(tenantID, id)]
	if !ok {
		return ErrPrincipalNotFound
	}
	rec.Roles = slices.Clone(roles)
	return nil
}

// FindByUsername implements [Directory].
func (m *Memory) FindByUsername(_ context.Context, tenantID, username string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUsername[idKey(tenantID, username)]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return m.copyOf(tenantID, id)
}

// FindByID implements [Directory].
func (m *Memory) FindByID(_ context.Context, tenantID, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyOf(tenantID, id)
}

func (m *Memory) copyOf(tenantID, id string) (*Record, error) {
	rec, ok := m.byID[idKey(tenantID, id)]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	out := *rec
	out.Roles = slices.Clone(rec.Roles)
	return &out, nil
}
