package service

import (
	"context"
	"time"

	"division-tracker/internal/api"
	"division-tracker/internal/domain"
)

type CredentialSource interface {
	Credentials(ctx context.Context) (api.Credentials, error)
}

type ProfileClient interface {
	SearchProfiles(ctx context.Context, creds api.Credentials, name string) (*api.ProfilesResponse, error)
	GetProfile(ctx context.Context, creds api.Credentials, profileID string) (*api.ProfilesResponse, error)
}

type StatsClient interface {
	StatsCardEndpoint(spaceID string) api.Endpoint
	GetStatsCard(ctx context.Context, creds api.Credentials, url string) (*api.StatsCardResponse, error)
}

type IdentityStore interface {
	Save(ctx context.Context, profile domain.ProfileIdentity, observedAt time.Time) error
	FindIDsByName(ctx context.Context, name string) ([]string, error)
	Get(ctx context.Context, id string, limit int) (*domain.IdentityRecord, error)
}

type IdentityPersister interface {
	PersistIdentity(ctx context.Context, profile domain.ProfileIdentity)
}

// Scraper renders a third-party profile page and returns its stats JSON.
type Scraper interface {
	Scrape(ctx context.Context, name string) ([]byte, error)
}
