package server

import (
	"time"

	"division-tracker/internal/domain"
)

type GetPlayerStatsRequest struct {
	Name    string `json:"name"`
	Variant string `json:"variant"`
}

type GetPlayerStatsResponse struct {
	Reports []*domain.PlayerStatsReport `json:"reports"`
}

type GetNameHistoryRequest struct {
	ID string `json:"id"`
}

type NameHistoryEntry struct {
	Name       string    `json:"name"`
	ObservedAt time.Time `json:"observed_at"`
}

type GetNameHistoryResponse struct {
	ID    string             `json:"id"`
	Names []NameHistoryEntry `json:"names"`
}
