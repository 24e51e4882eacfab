package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"division-tracker/internal/config"
	"division-tracker/internal/constants"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// statsScript returns the stats document the profile page hydrates from, as
// a JSON string, or "" when the page carries none.
const statsScript = `(() => {
	const state = window.__INITIAL_STATE__ || window.__NUXT__ || null;
	if (state && state.stats) {
		return JSON.stringify({stats: state.stats});
	}
	const tag = document.querySelector('script[type="application/json"][data-stats], script#stats-data');
	if (tag && tag.textContent) {
		return tag.textContent;
	}
	return "";
})()`

// TrackerScraper renders a profile page on a remote Chrome instance.
type TrackerScraper struct {
	chromeURL string
	baseURL   string
	logger    zerolog.Logger
}

func New(chromeURL, baseURL string, logger zerolog.Logger) *TrackerScraper {
	if baseURL == "" {
		baseURL = constants.ScrapeDefaultBaseURL
	}
	return &TrackerScraper{
		chromeURL: chromeURL,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// NewFromConfig returns nil when CHROME_URL is unset.
func NewFromConfig(cfg *config.Config, logger zerolog.Logger) *TrackerScraper {
	if cfg.ChromeURL == "" {
		logger.Info().Msg("CHROME_URL not set, scrape fallback disabled")
		return nil
	}
	return New(cfg.ChromeURL, cfg.ScrapeBaseURL, logger)
}

func (s *TrackerScraper) warnf(format string, args ...any) {
	s.logger.Warn().Str("component", "chromedp").Msgf(format, args...)
}

func (s *TrackerScraper) ProfileURL(name string) string {
	return s.baseURL + "/" + url.PathEscape(name)
}

// Scrape returns the raw stats JSON of the profile page for name.
func (s *TrackerScraper) Scrape(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ScrapeTimeout)
	defer cancel()

	allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, s.chromeURL)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(s.warnf),
		chromedp.WithLogf(func(string, ...any) {}),
	)
	defer cancel()

	target := s.ProfileURL(name)
	var doc string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(statsScript, &doc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape %s: %w", target, err)
	}

	doc = strings.TrimSpace(doc)
	if doc == "" {
		return nil, fmt.Errorf("no stats document on %s", target)
	}

	s.logger.Debug().Str("name", name).Int("bytes", len(doc)).Msg("scraped profile page")
	return []byte(doc), nil
}
