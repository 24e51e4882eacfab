package fx

import (
	"database/sql"

	"division-tracker/internal/api"
	"division-tracker/internal/config"
	"division-tracker/internal/database"
	"division-tracker/internal/db"
	"division-tracker/internal/logger"
	"division-tracker/internal/repository"
	"division-tracker/internal/scrape"
	"division-tracker/internal/server"
	"division-tracker/internal/service"
	"division-tracker/internal/session"
	"division-tracker/internal/telemetry"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

// ProvideScraper yields a nil Scraper when CHROME_URL is unset, which turns
// the scrape fallback off.
func ProvideScraper(cfg *config.Config, logger zerolog.Logger) service.Scraper {
	if s := scrape.NewFromConfig(cfg, logger); s != nil {
		return s
	}
	return nil
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	telemetry.Module,
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(fx.Annotate(repository.NewIdentityRepository, fx.As(new(service.IdentityStore)))),
	// api client
	fx.Provide(fx.Annotate(api.NewUbiClient,
		fx.As(new(session.Authenticator)),
		fx.As(new(service.ProfileClient)),
		fx.As(new(service.StatsClient)),
	)),
	fx.Provide(fx.Annotate(session.NewManager, fx.As(new(service.CredentialSource)))),
	fx.Provide(ProvideScraper),
	// svc
	fx.Provide(fx.Annotate(service.NewIdentityResolver, fx.As(fx.Self()), fx.As(new(service.IdentityPersister)))),
	fx.Provide(service.NewStatsFetcher),
	fx.Provide(service.NewStatsMapper),
	fx.Provide(fx.Annotate(service.NewStatsService, fx.As(new(server.StatsProvider)))),
	// server
	fx.Provide(server.NewTrackerServer),
)
