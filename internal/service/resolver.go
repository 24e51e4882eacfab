package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"division-tracker/internal/constants"
	"division-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type IdentityResolver struct {
	sessions CredentialSource
	client   ProfileClient
	store    IdentityStore
	logger   zerolog.Logger
	now      func() time.Time
}

func NewIdentityResolver(sessions CredentialSource, client ProfileClient, store IdentityStore, logger zerolog.Logger) *IdentityResolver {
	return &IdentityResolver{
		sessions: sessions,
		client:   client,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// ResolveByName looks the name up upstream first and falls back to every id
// the store has ever seen under that name. Store ids carry no display name.
func (r *IdentityResolver) ResolveByName(ctx context.Context, name string) ([]domain.ProfileIdentity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", domain.ErrPlayerNotFound)
	}

	live, err := r.resolveLive(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrRenewalExhausted) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn().Err(err).Str("name", name).Msg("live profile lookup failed, falling back to store")
	}
	if len(live) > 0 {
		r.logger.Debug().Str("name", name).Int("count", len(live)).Msg("resolved profiles upstream")
		return live, nil
	}

	stored, err := r.resolveStored(ctx, name)
	if err != nil {
		r.logger.Warn().Err(err).Str("name", name).Msg("store profile lookup failed")
	}
	if len(stored) > 0 {
		r.logger.Debug().Str("name", name).Int("count", len(stored)).Msg("resolved profiles from store")
		return stored, nil
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, name)
}

func (r *IdentityResolver) resolveLive(ctx context.Context, name string) ([]domain.ProfileIdentity, error) {
	creds, err := r.sessions.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	resp, err := r.client.SearchProfiles(apiCtx, creds, name)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}

	seen := make(map[string]bool, len(resp.Profiles))
	var identities []domain.ProfileIdentity
	for _, p := range resp.Profiles {
		if p.ProfileID == "" || seen[p.ProfileID] || !strings.EqualFold(p.NameOnPlatform, name) {
			continue
		}
		seen[p.ProfileID] = true
		identities = append(identities, domain.ProfileIdentity{
			ID:          p.ProfileID,
			DisplayName: p.NameOnPlatform,
		})
	}
	return identities, nil
}

func (r *IdentityResolver) resolveStored(ctx context.Context, name string) ([]domain.ProfileIdentity, error) {
	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	ids, err := r.store.FindIDsByName(dbCtx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	seen := make(map[string]bool, len(ids))
	identities := make([]domain.ProfileIdentity, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		identities = append(identities, domain.ProfileIdentity{ID: id})
	}
	return identities, nil
}

// PersistIdentity is best-effort: store failures are logged, never returned.
func (r *IdentityResolver) PersistIdentity(ctx context.Context, profile domain.ProfileIdentity) {
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DatabaseTimeout)
	defer cancel()

	if err := r.store.Save(dbCtx, profile, r.now().UTC()); err != nil {
		r.logger.Warn().
			Err(fmt.Errorf("%w: %w", domain.ErrStore, err)).
			Str("profile_id", profile.ID).
			Str("name", profile.DisplayName).
			Msg("failed to persist identity")
	}
}

func (r *IdentityResolver) History(ctx context.Context, id string) (*domain.IdentityRecord, error) {
	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	record, err := r.store.Get(dbCtx, id, constants.NameHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return record, nil
}

// NameHistory returns the known names of id, most recent first, or nil when
// the store cannot answer.
func (r *IdentityResolver) NameHistory(ctx context.Context, id string) []string {
	record, err := r.History(ctx, id)
	if err != nil {
		r.logger.Warn().Err(err).Str("profile_id", id).Msg("failed to load name history")
		return nil
	}

	names := make([]string, len(record.Names))
	for i, n := range record.Names {
		names[i] = n.Name
	}
	return names
}
