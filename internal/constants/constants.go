package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	LoginTimeout       = 15 * time.Second
	ScrapeTimeout      = 45 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

// upstream session renewal
const (
	MaxLoginAttempts = 5
)

const (
	DefaultFetchConcurrency = 10
	NameHistoryLimit        = 50
)

// ubiservices request headers
const (
	UbiAppID               = "314d4fef-e568-454a-ae06-43e3bece12a6"
	UbiPlatformType        = "uplay"
	UbiLocaleCode          = "en-US"
	UbiUserAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36"
	UbiContentType         = "application/json; charset=utf-8"
	UbiAccept              = "application/json"
	UbiDefaultBaseURL      = "https://public-ubiservices.ubi.com"
	ScrapeDefaultBaseURL   = "https://tracker.gg/division-2/profile/uplay"
	Division1SpaceID       = "6edd234a-abff-4e90-9aab-b9b9c6e49ff7"
	Division2SpaceID       = "60859c37-949d-49e2-8fc8-6d8dc40f1a9e"
	SourceStatsCard        = "statscard"
	SourceScrape           = "scrape"
	DefaultWorldTierString = "No World Tier"
)
