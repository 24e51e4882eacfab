package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"division-tracker/internal/api"
	"division-tracker/internal/constants"
	"division-tracker/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type StatsService struct {
	resolver *IdentityResolver
	fetcher  *StatsFetcher
	mapper   *StatsMapper
	stats    StatsClient
	scraper  Scraper
	logger   zerolog.Logger
}

// NewStatsService wires the pipeline. scraper may be nil, which disables the
// scrape fallback.
func NewStatsService(resolver *IdentityResolver, fetcher *StatsFetcher, mapper *StatsMapper, stats StatsClient, scraper Scraper, logger zerolog.Logger) *StatsService {
	return &StatsService{
		resolver: resolver,
		fetcher:  fetcher,
		mapper:   mapper,
		stats:    stats,
		scraper:  scraper,
		logger:   logger,
	}
}

func (s *StatsService) endpoint(variant domain.GameVariant) (api.Endpoint, error) {
	switch variant {
	case domain.Division1:
		return s.stats.StatsCardEndpoint(constants.Division1SpaceID), nil
	case domain.Division2:
		return s.stats.StatsCardEndpoint(constants.Division2SpaceID), nil
	}
	return nil, fmt.Errorf("unknown game variant %q", variant)
}

// GetPlayerStats resolves name and returns one report per profile whose stats
// mapped cleanly. The request fails only when no profile produced a report.
func (s *StatsService) GetPlayerStats(ctx context.Context, name string, variant domain.GameVariant) ([]*domain.PlayerStatsReport, error) {
	ctx, span := otel.Tracer("division-tracker/service").Start(ctx, "stats.get_player_stats")
	defer span.End()
	span.SetAttributes(attribute.String("player.name", name), attribute.String("game.variant", string(variant)))

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	endpoint, err := s.endpoint(variant)
	if err != nil {
		return nil, err
	}

	identities, err := s.resolver.ResolveByName(ctx, name)
	if err != nil {
		span.SetStatus(codes.Error, "resolve failed")
		return nil, err
	}

	results := s.fetcher.FetchBatch(ctx, identities, endpoint)

	var (
		reports  []*domain.PlayerStatsReport
		failures []error
	)
	for _, res := range results {
		if res.Err != nil {
			failures = append(failures, res.Err)
			continue
		}

		report, err := s.mapper.MapToGameStats(res.Record, variant)
		if err != nil {
			s.logger.Warn().Err(err).Str("profile_id", res.Identity.ID).Msg("failed to map stats")
			failures = append(failures, err)
			continue
		}
		s.decorate(ctx, report, res.Identity, name)
		reports = append(reports, report)
	}

	if err := credentialFailure(failures); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credentials rejected")
		return nil, err
	}

	if len(reports) == 0 {
		if scraped, ok := s.scrapeFallback(ctx, name, variant, identities); ok {
			return scraped, nil
		}
		err := batchError(ctx, name, failures)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no reports")
		return nil, err
	}

	sortReports(reports)
	span.SetAttributes(attribute.Int("reports", len(reports)))
	s.logger.Info().Str("name", name).Str("variant", string(variant)).Int("count", len(reports)).Int("failed", len(failures)).Msg("player stats served")
	return reports, nil
}

func (s *StatsService) decorate(ctx context.Context, report *domain.PlayerStatsReport, identity domain.ProfileIdentity, queried string) {
	report.ID = identity.ID
	report.Name = identity.DisplayName
	if report.Name == "" {
		report.Name = queried
	}
	report.AllNames = s.resolver.NameHistory(ctx, identity.ID)
	if len(report.AllNames) == 0 {
		report.AllNames = []string{report.Name}
	}
}

// scrapeFallback is attempted for Division 2 only, and only when a scraper is
// configured. It scrapes each known display name, or the queried name when
// none is known.
func (s *StatsService) scrapeFallback(ctx context.Context, name string, variant domain.GameVariant, identities []domain.ProfileIdentity) ([]*domain.PlayerStatsReport, bool) {
	if s.scraper == nil || variant != domain.Division2 {
		return nil, false
	}
	if ctx.Err() != nil {
		return nil, false
	}

	targets := make(map[string]domain.ProfileIdentity)
	for _, id := range identities {
		if id.DisplayName != "" {
			if _, ok := targets[id.DisplayName]; !ok {
				targets[id.DisplayName] = id
			}
		}
	}
	if len(targets) == 0 {
		targets[name] = domain.ProfileIdentity{DisplayName: name}
	}

	var reports []*domain.PlayerStatsReport
	for display, identity := range targets {
		doc, err := s.scraper.Scrape(ctx, display)
		if err != nil {
			s.logger.Warn().Err(err).Str("name", display).Msg("scrape fallback failed")
			continue
		}
		report, err := s.mapper.MapKeyed(doc, variant)
		if err != nil {
			s.logger.Warn().Err(err).Str("name", display).Msg("failed to map scraped stats")
			continue
		}
		s.decorate(ctx, report, identity, display)
		reports = append(reports, report)
	}
	if len(reports) == 0 {
		return nil, false
	}

	sortReports(reports)
	s.logger.Info().Str("name", name).Int("count", len(reports)).Msg("player stats served from scrape fallback")
	return reports, true
}

// credentialFailure returns the first slot that failed on the session. It
// aborts the whole request even when other slots succeeded.
func credentialFailure(failures []error) error {
	for _, err := range failures {
		if errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrRenewalExhausted) {
			return err
		}
	}
	return nil
}

// batchError picks the error for a batch without any report: the caller's
// context, then a schema mismatch, then the first upstream failure.
func batchError(ctx context.Context, name string, failures []error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, err := range failures {
		if errors.Is(err, domain.ErrSchemaMismatch) {
			return err
		}
	}
	if len(failures) > 0 {
		return failures[0]
	}
	return fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, name)
}

func sortReports(reports []*domain.PlayerStatsReport) {
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Name != reports[j].Name {
			return reports[i].Name < reports[j].Name
		}
		return reports[i].ID < reports[j].ID
	})
}

func (s *StatsService) History(ctx context.Context, id string) (*domain.IdentityRecord, error) {
	record, err := s.resolver.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(record.Names) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
	}
	return record, nil
}
