package service

import (
	"context"
	"errors"
	"fmt"

	"division-tracker/internal/api"
	"division-tracker/internal/config"
	"division-tracker/internal/constants"
	"division-tracker/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// FetchResult is the outcome of one identity in a batch. Identity always
// names the profile the record or error belongs to.
type FetchResult struct {
	Identity domain.ProfileIdentity
	Record   domain.RawStatRecord
	Err      error
}

type StatsFetcher struct {
	sessions  CredentialSource
	stats     StatsClient
	profiles  ProfileClient
	persister IdentityPersister
	window    int
	logger    zerolog.Logger
}

func NewStatsFetcher(cfg *config.Config, sessions CredentialSource, stats StatsClient, profiles ProfileClient, persister IdentityPersister, logger zerolog.Logger) *StatsFetcher {
	window := cfg.FetchConcurrency
	if window <= 0 {
		window = constants.DefaultFetchConcurrency
	}
	return &StatsFetcher{
		sessions:  sessions,
		stats:     stats,
		profiles:  profiles,
		persister: persister,
		window:    window,
		logger:    logger,
	}
}

// FetchBatch fetches every identity with at most window requests in flight.
// A failing slot never aborts the batch; results come back in completion
// order.
func (f *StatsFetcher) FetchBatch(ctx context.Context, identities []domain.ProfileIdentity, endpoint api.Endpoint) []FetchResult {
	ctx, span := otel.Tracer("division-tracker/service").Start(ctx, "stats.fetch_batch")
	defer span.End()

	unique := make([]domain.ProfileIdentity, 0, len(identities))
	seen := make(map[string]bool, len(identities))
	for _, id := range identities {
		if seen[id.ID] {
			continue
		}
		seen[id.ID] = true
		unique = append(unique, id)
	}
	span.SetAttributes(attribute.Int("batch.size", len(unique)), attribute.Int("batch.window", f.window))

	results := make(chan FetchResult, len(unique))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.window)

	for _, identity := range unique {
		g.Go(func() error {
			results <- f.fetchOne(gCtx, identity, endpoint)
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	out := make([]FetchResult, 0, len(unique))
	failed := 0
	for res := range results {
		if res.Err != nil {
			failed++
		}
		out = append(out, res)
	}

	f.logger.Debug().Int("count", len(out)).Int("failed", failed).Msg("stats batch fetched")
	return out
}

func (f *StatsFetcher) fetchOne(ctx context.Context, identity domain.ProfileIdentity, endpoint api.Endpoint) FetchResult {
	result := FetchResult{Identity: identity}

	creds, err := f.sessions.Credentials(ctx)
	if err != nil {
		result.Err = &domain.FetchError{ProfileID: identity.ID, Err: err}
		return result
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	resp, err := f.stats.GetStatsCard(apiCtx, creds, endpoint(identity.ID))
	if err != nil {
		result.Err = &domain.FetchError{ProfileID: identity.ID, Err: upstream(ctx, err)}
		f.logger.Warn().Err(err).Str("profile_id", identity.ID).Msg("failed to fetch stats")
		return result
	}

	record := make(domain.RawStatRecord, len(resp.Statscards))
	for i, card := range resp.Statscards {
		record[i] = domain.StatEntry{Key: card.StatName, Value: card.Value}
	}
	result.Record = record

	if result.Identity.DisplayName == "" {
		result.Identity.DisplayName = f.backfillName(apiCtx, creds, identity.ID)
	}
	f.persister.PersistIdentity(ctx, result.Identity)

	return result
}

// backfillName returns the current display name of profileID, or "" when the
// lookup fails.
func (f *StatsFetcher) backfillName(ctx context.Context, creds api.Credentials, profileID string) string {
	resp, err := f.profiles.GetProfile(ctx, creds, profileID)
	if err != nil {
		f.logger.Warn().Err(err).Str("profile_id", profileID).Msg("failed to backfill display name")
		return ""
	}
	for _, p := range resp.Profiles {
		if p.ProfileID == profileID && p.NameOnPlatform != "" {
			return p.NameOnPlatform
		}
	}
	return ""
}

// upstream classifies a failed upstream call. Caller cancellation stays a
// context error; everything else is ErrUpstream.
func upstream(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	if errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
}
