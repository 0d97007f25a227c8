package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process store with the same behaviour as Store. It is used when
// no database is configured and in tests.
type Memory struct {
	mu        sync.RWMutex
	campaigns []CampaignRecord
	profiles  map[uuid.UUID]Profile
	admins    map[uuid.UUID]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		profiles: map[uuid.UUID]Profile{},
		admins:   map[uuid.UUID]struct{}{},
	}
}

func (m *Memory) RecordCampaign(_ context.Context, rec CampaignRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.campaigns = append(m.campaigns, rec)
	return nil
}

func (m *Memory) CampaignsForUser(_ context.Context, userID uuid.UUID) ([]CampaignRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CampaignRecord
	for _, c := range m.campaigns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetProfile(_ context.Context, userID uuid.UUID) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	p.Platforms = append([]string(nil), p.Platforms...)
	return p, nil
}

func (m *Memory) UpdateProfile(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Platforms = append([]string{}, p.Platforms...)
	m.profiles[p.UserID] = p
	return nil
}

func (m *Memory) IsAdmin(_ context.Context, userID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.admins[userID]
	return ok, nil
}

// GrantAdmin marks a user as privileged.
func (m *Memory) GrantAdmin(userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[userID] = struct{}{}
}
