package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"division-tracker/internal/api"
	"division-tracker/internal/domain"
)

type fakeSessions struct {
	err   error
	calls atomic.Int32
}

func (f *fakeSessions) Credentials(ctx context.Context) (api.Credentials, error) {
	f.calls.Add(1)
	if f.err != nil {
		return api.Credentials{}, f.err
	}
	return api.Credentials{Ticket: "ticket", SessionID: "session"}, nil
}

type fakeProfiles struct {
	search      []api.Profile
	searchErr   error
	byID        map[string]string
	getErr      error
	searchCalls atomic.Int32
	getCalls    atomic.Int32
}

func (f *fakeProfiles) SearchProfiles(ctx context.Context, creds api.Credentials, name string) (*api.ProfilesResponse, error) {
	f.searchCalls.Add(1)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &api.ProfilesResponse{Profiles: f.search}, nil
}

func (f *fakeProfiles) GetProfile(ctx context.Context, creds api.Credentials, profileID string) (*api.ProfilesResponse, error) {
	f.getCalls.Add(1)
	if f.getErr != nil {
		return nil, f.getErr
	}
	name, ok := f.byID[profileID]
	if !ok {
		return &api.ProfilesResponse{}, nil
	}
	return &api.ProfilesResponse{Profiles: []api.Profile{{ProfileID: profileID, NameOnPlatform: name}}}, nil
}

// memoryStore is an in-memory IdentityStore with the same duplicate rules as
// the SQLite repository.
type memoryStore struct {
	mu      sync.Mutex
	names   map[string][]domain.NameEntry
	saveErr error
	findErr error
	saves   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{names: make(map[string][]domain.NameEntry)}
}

func (s *memoryStore) Save(ctx context.Context, profile domain.ProfileIdentity, observedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	names, ok := s.names[profile.ID]
	if !ok {
		s.names[profile.ID] = nil
	}
	if profile.DisplayName == "" {
		return nil
	}
	if len(names) > 0 && names[0].Name == profile.DisplayName {
		return nil
	}
	rest := make([]domain.NameEntry, 0, len(names))
	for _, n := range names {
		if n.Name != profile.DisplayName {
			rest = append(rest, n)
		}
	}
	s.names[profile.ID] = append([]domain.NameEntry{{Name: profile.DisplayName, ObservedAt: observedAt}}, rest...)
	return nil
}

func (s *memoryStore) FindIDsByName(ctx context.Context, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var ids []string
	for id, names := range s.names {
		for _, n := range names {
			if strings.EqualFold(n.Name, name) {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func (s *memoryStore) Get(ctx context.Context, id string, limit int) (*domain.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, ok := s.names[id]
	if !ok {
		return nil, errors.New("not found")
	}
	if len(names) > limit {
		names = names[:limit]
	}
	return &domain.IdentityRecord{ID: id, Names: append([]domain.NameEntry(nil), names...)}, nil
}

func (s *memoryStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
