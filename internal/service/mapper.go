package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"division-tracker/internal/constants"
	"division-tracker/internal/domain"

	"github.com/tidwall/gjson"
)

// field binds one statistic to its statscard position and to the key the
// tracker page uses for it.
type field[R any] struct {
	pos int
	key string
	set func(r *R, raw string)
}

type schema[R any] struct {
	variant  domain.GameVariant
	length   int
	fields   []field[R]
	defaults func(r *R)
	derive   func(r *R)
}

func (s schema[R]) fromPositions(raw domain.RawStatRecord) (*R, error) {
	if len(raw) != s.length {
		return nil, &domain.SchemaMismatchError{Variant: s.variant, Observed: len(raw), Expected: s.length}
	}

	r := s.empty()
	for _, f := range s.fields {
		f.set(r, raw[f.pos].Value)
	}
	s.finish(r)
	return r, nil
}

func (s schema[R]) fromKeys(doc []byte) (*R, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("%w: scraped %s document is not valid JSON", domain.ErrUpstream, s.variant)
	}
	root := gjson.ParseBytes(doc)

	r := s.empty()
	for _, f := range s.fields {
		if v := lookupKey(root, f.key); v.Exists() {
			f.set(r, v.String())
		}
	}
	s.finish(r)
	return r, nil
}

func (s schema[R]) empty() *R {
	r := new(R)
	if s.defaults != nil {
		s.defaults(r)
	}
	return r
}

func (s schema[R]) finish(r *R) {
	if s.derive != nil {
		s.derive(r)
	}
}

func lookupKey(root gjson.Result, key string) gjson.Result {
	for _, path := range []string{"stats." + key + ".value", "stats." + key, key + ".value", key} {
		if v := root.Get(path); v.Exists() && v.Type != gjson.JSON {
			return v
		}
	}
	return gjson.Result{}
}

func parseCount(raw string) int64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	f, ok := parseFinite(raw)
	if !ok || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func parsePercent(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if trimmed, ok := strings.CutSuffix(raw, "%"); ok {
		f, _ := parseFinite(strings.TrimSpace(trimmed))
		return f
	}
	f, ok := parseFinite(raw)
	if !ok || math.IsInf(f*100, 0) {
		return 0
	}
	return f * 100
}

// parseFinite rejects NaN and the infinities, which ParseFloat accepts and
// encoding/json cannot emit.
func parseFinite(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func ratio(numerator, denominator int64) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func count[R any](pos int, key string, dst func(*R) *int64) field[R] {
	return field[R]{pos: pos, key: key, set: func(r *R, raw string) { *dst(r) = parseCount(raw) }}
}

func hours[R any](pos int, key string, dst func(*R) *int64) field[R] {
	return field[R]{pos: pos, key: key, set: func(r *R, raw string) { *dst(r) = parseCount(raw) / 3600 }}
}

func minutes[R any](pos int, key string, dst func(*R) *int64) field[R] {
	return field[R]{pos: pos, key: key, set: func(r *R, raw string) { *dst(r) = parseCount(raw) / 60 }}
}

func percent[R any](pos int, key string, dst func(*R) *float64) field[R] {
	return field[R]{pos: pos, key: key, set: func(r *R, raw string) { *dst(r) = parsePercent(raw) }}
}

func text[R any](pos int, key string, dst func(*R) *string) field[R] {
	return field[R]{pos: pos, key: key, set: func(r *R, raw string) {
		if v := strings.TrimSpace(raw); v != "" {
			*dst(r) = v
		}
	}}
}

var division1Schema = schema[domain.D1Stats]{
	variant: domain.Division1,
	length:  12,
	fields: []field[domain.D1Stats]{
		count(0, "level", func(r *domain.D1Stats) *int64 { return &r.Level }),
		count(1, "rankDZ", func(r *domain.D1Stats) *int64 { return &r.DZRank }),
		count(2, "rankUG", func(r *domain.D1Stats) *int64 { return &r.UGRank }),
		hours(3, "timePlayed", func(r *domain.D1Stats) *int64 { return &r.Playtime }),
		percent(4, "mainStoryProgress", func(r *domain.D1Stats) *float64 { return &r.MainStory }),
		count(5, "roguesKilled", func(r *domain.D1Stats) *int64 { return &r.RogueKills }),
		count(6, "itemsExtracted", func(r *domain.D1Stats) *int64 { return &r.ItemsExtracted }),
		count(7, "killsSkill", func(r *domain.D1Stats) *int64 { return &r.SkillKills }),
		count(8, "killsTotal", func(r *domain.D1Stats) *int64 { return &r.TotalKills }),
		count(11, "gearScore", func(r *domain.D1Stats) *int64 { return &r.GearScore }),
	},
}

var division2Schema = schema[domain.D2Stats]{
	variant: domain.Division2,
	length:  48,
	fields: []field[domain.D2Stats]{
		count(0, "killsPvP", func(r *domain.D2Stats) *int64 { return &r.PvPKills }),
		count(1, "killsNpc", func(r *domain.D2Stats) *int64 { return &r.NPCKills }),
		count(2, "headshots", func(r *domain.D2Stats) *int64 { return &r.Headshots }),
		count(3, "killsSkill", func(r *domain.D2Stats) *int64 { return &r.SkillKills }),
		count(4, "itemsLooted", func(r *domain.D2Stats) *int64 { return &r.ItemsLooted }),
		minutes(5, "rogueLongest", func(r *domain.D2Stats) *int64 { return &r.LongestRogue }),
		count(6, "highestPlayerLevel", func(r *domain.D2Stats) *int64 { return &r.Level }),
		count(7, "rankDZ", func(r *domain.D2Stats) *int64 { return &r.DZRank }),
		count(8, "xPPve", func(r *domain.D2Stats) *int64 { return &r.WhiteZoneXP }),
		count(9, "xPDZ", func(r *domain.D2Stats) *int64 { return &r.DarkZoneXP }),
		count(10, "xPPvp", func(r *domain.D2Stats) *int64 { return &r.PvPXP }),
		count(11, "xPClan", func(r *domain.D2Stats) *int64 { return &r.ClanXP }),
		count(12, "commendationScore", func(r *domain.D2Stats) *int64 { return &r.CommendationScore }),
		count(13, "eCreditBalance", func(r *domain.D2Stats) *int64 { return &r.ECredit }),
		hours(14, "timePlayed", func(r *domain.D2Stats) *int64 { return &r.TotalPlaytime }),
		hours(15, "timePlayedDarkZone", func(r *domain.D2Stats) *int64 { return &r.DZPlaytime }),
		hours(16, "timePlayedRogue", func(r *domain.D2Stats) *int64 { return &r.RoguePlaytime }),
		count(17, "killsPvE", func(r *domain.D2Stats) *int64 { return &r.WhiteZonePvEKills }),
		count(18, "killsPvEDarkZone", func(r *domain.D2Stats) *int64 { return &r.DarkZonePvEKills }),
		count(19, "shotsHit", func(r *domain.D2Stats) *int64 { return &r.TotalHits }),
		count(20, "criticalHits", func(r *domain.D2Stats) *int64 { return &r.CritHits }),
		count(21, "gearScore", func(r *domain.D2Stats) *int64 { return &r.GearScore }),
		text(22, "worldTier", func(r *domain.D2Stats) *string { return &r.WorldTier }),
		count(23, "rankConflict", func(r *domain.D2Stats) *int64 { return &r.ConflictRank }),
	},
	defaults: func(r *domain.D2Stats) {
		r.WorldTier = constants.DefaultWorldTierString
	},
	derive: func(r *domain.D2Stats) {
		r.HeadshotsHitsRatio = ratio(r.Headshots, r.TotalHits)
	},
}

// ExpectedLength is the statscard length of variant, or 0 if unknown.
func ExpectedLength(variant domain.GameVariant) int {
	switch variant {
	case domain.Division1:
		return division1Schema.length
	case domain.Division2:
		return division2Schema.length
	}
	return 0
}

type StatsMapper struct{}

func NewStatsMapper() *StatsMapper {
	return &StatsMapper{}
}

func (m *StatsMapper) MapToGameStats(raw domain.RawStatRecord, variant domain.GameVariant) (*domain.PlayerStatsReport, error) {
	report := &domain.PlayerStatsReport{Variant: variant, Source: constants.SourceStatsCard}

	switch variant {
	case domain.Division1:
		stats, err := division1Schema.fromPositions(raw)
		if err != nil {
			return nil, err
		}
		report.Division1 = stats
	case domain.Division2:
		stats, err := division2Schema.fromPositions(raw)
		if err != nil {
			return nil, err
		}
		report.Division2 = stats
	default:
		return nil, fmt.Errorf("unknown game variant %q", variant)
	}
	return report, nil
}

// MapKeyed maps a document keyed by statistic name, as produced by the
// scrape path, with the same defaults and derived fields as MapToGameStats.
func (m *StatsMapper) MapKeyed(doc []byte, variant domain.GameVariant) (*domain.PlayerStatsReport, error) {
	report := &domain.PlayerStatsReport{Variant: variant, Source: constants.SourceScrape}

	switch variant {
	case domain.Division1:
		stats, err := division1Schema.fromKeys(doc)
		if err != nil {
			return nil, err
		}
		report.Division1 = stats
	case domain.Division2:
		stats, err := division2Schema.fromKeys(doc)
		if err != nil {
			return nil, err
		}
		report.Division2 = stats
	default:
		return nil, fmt.Errorf("unknown game variant %q", variant)
	}
	return report, nil
}
