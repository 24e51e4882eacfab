package domain

import (
	"fmt"
	"strings"
	"time"
)

type SessionTicket struct {
	Ticket    string
	SessionID string
	ExpiresAt time.Time
}

// Expired reports whether the ticket must not be used at now.
func (t SessionTicket) Expired(now time.Time) bool {
	return t.Ticket == "" || !now.Before(t.ExpiresAt)
}

// ProfileIdentity is a platform profile id, optionally with the display name
// it was resolved under. An empty DisplayName means it is not known yet.
type ProfileIdentity struct {
	ID          string
	DisplayName string
}

type NameEntry struct {
	Name       string
	ObservedAt time.Time
}

// IdentityRecord is the stored name history of a profile, most recent first.
type IdentityRecord struct {
	ID    string
	Names []NameEntry
}

type StatEntry struct {
	Key   string `json:"statName"`
	Value string `json:"value"`
}

// RawStatRecord is the positional statscard list returned upstream.
type RawStatRecord []StatEntry

type GameVariant string

const (
	Division1 GameVariant = "division1"
	Division2 GameVariant = "division2"
)

func ParseGameVariant(s string) (GameVariant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "division1", "div1", "d1", "1":
		return Division1, nil
	case "division2", "div2", "d2", "2":
		return Division2, nil
	}
	return "", fmt.Errorf("unknown game variant %q", s)
}

type D1Stats struct {
	Level          int64   `json:"level"`
	DZRank         int64   `json:"dz_rank"`
	UGRank         int64   `json:"ug_rank"`
	Playtime       int64   `json:"playtime"` // hours
	MainStory      float64 `json:"main_story"`
	RogueKills     int64   `json:"rogue_kills"`
	ItemsExtracted int64   `json:"items_extracted"`
	SkillKills     int64   `json:"skill_kills"`
	TotalKills     int64   `json:"total_kills"`
	GearScore      int64   `json:"gear_score"`
}

type D2Stats struct {
	PvPKills           int64   `json:"pvp_kills"`
	NPCKills           int64   `json:"npc_kills"`
	Headshots          int64   `json:"headshots"`
	SkillKills         int64   `json:"skill_kills"`
	ItemsLooted        int64   `json:"items_looted"`
	LongestRogue       int64   `json:"longest_rogue"` // minutes
	Level              int64   `json:"level"`
	DZRank             int64   `json:"dz_rank"`
	WhiteZoneXP        int64   `json:"white_zone_xp"`
	DarkZoneXP         int64   `json:"dark_zone_xp"`
	PvPXP              int64   `json:"pvp_xp"`
	ClanXP             int64   `json:"clan_xp"`
	CommendationScore  int64   `json:"commendation_score"`
	ECredit            int64   `json:"e_credit"`
	TotalPlaytime      int64   `json:"total_playtime"` // hours
	DZPlaytime         int64   `json:"dz_playtime"`    // hours
	RoguePlaytime      int64   `json:"rogue_playtime"` // hours
	WhiteZonePvEKills  int64   `json:"white_zone_pve_kills"`
	DarkZonePvEKills   int64   `json:"dark_zone_pve_kills"`
	TotalHits          int64   `json:"total_hits"`
	CritHits           int64   `json:"crit_hits"`
	GearScore          int64   `json:"gear_score"`
	WorldTier          string  `json:"world_tier"`
	ConflictRank       int64   `json:"conflict_rank"`
	HeadshotsHitsRatio float64 `json:"headshots_hits_ratio"`
}

// PlayerStatsReport carries exactly one of Division1 or Division2.
type PlayerStatsReport struct {
	Variant   GameVariant `json:"variant"`
	ID        string      `json:"-"`
	Name      string      `json:"name"`
	AllNames  []string    `json:"all_names"`
	Source    string      `json:"source"`
	Division1 *D1Stats    `json:"division1,omitempty"`
	Division2 *D2Stats    `json:"division2,omitempty"`
}
