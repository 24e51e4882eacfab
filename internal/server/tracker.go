package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"division-tracker/internal/domain"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const (
	DivisionTrackerPath           = "/division.v1.DivisionTracker/"
	GetPlayerStatsProcedure       = DivisionTrackerPath + "GetPlayerStats"
	GetNameHistoryProcedure       = DivisionTrackerPath + "GetNameHistory"
	upstreamAuthUnavailableReason = "upstream authentication is unavailable"
)

type StatsProvider interface {
	GetPlayerStats(ctx context.Context, name string, variant domain.GameVariant) ([]*domain.PlayerStatsReport, error)
	History(ctx context.Context, id string) (*domain.IdentityRecord, error)
}

type TrackerServer struct {
	stats  StatsProvider
	logger zerolog.Logger
}

func NewTrackerServer(stats StatsProvider, logger zerolog.Logger) *TrackerServer {
	return &TrackerServer{stats: stats, logger: logger}
}

// Handler returns the path prefix and handler serving every procedure.
func (s *TrackerServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetPlayerStatsProcedure, connect.NewUnaryHandler(GetPlayerStatsProcedure, s.GetPlayerStats, opts...))
	mux.Handle(GetNameHistoryProcedure, connect.NewUnaryHandler(GetNameHistoryProcedure, s.GetNameHistory, opts...))
	return DivisionTrackerPath, mux
}

func (s *TrackerServer) GetPlayerStats(ctx context.Context, req *connect.Request[GetPlayerStatsRequest]) (*connect.Response[GetPlayerStatsResponse], error) {
	log := s.requestLogger(ctx)
	start := time.Now()
	defer func() {
		log.Debug().Dur("duration", time.Since(start)).Msg("GetPlayerStats done")
	}()

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("name is required"))
	}
	variant, err := domain.ParseGameVariant(req.Msg.Variant)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	reports, err := s.stats.GetPlayerStats(ctx, name, variant)
	if err != nil {
		log.Warn().Err(err).Str("name", name).Str("variant", string(variant)).Msg("failed to get player stats")
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&GetPlayerStatsResponse{Reports: reports}), nil
}

func (s *TrackerServer) GetNameHistory(ctx context.Context, req *connect.Request[GetNameHistoryRequest]) (*connect.Response[GetNameHistoryResponse], error) {
	id := strings.TrimSpace(req.Msg.ID)
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}

	record, err := s.stats.History(ctx, id)
	if err != nil {
		s.requestLogger(ctx).Warn().Err(err).Str("profile_id", id).Msg("failed to get name history")
		return nil, toConnectError(err)
	}

	resp := &GetNameHistoryResponse{ID: record.ID, Names: make([]NameHistoryEntry, len(record.Names))}
	for i, n := range record.Names {
		resp.Names[i] = NameHistoryEntry{Name: n.Name, ObservedAt: n.ObservedAt}
	}
	return connect.NewResponse(resp), nil
}

func (s *TrackerServer) requestLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}

// toConnectError never forwards credential failures verbatim.
func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, domain.ErrPlayerNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, domain.ErrAuth), errors.Is(err, domain.ErrRenewalExhausted):
		return connect.NewError(connect.CodeUnavailable, errors.New(upstreamAuthUnavailableReason))
	case errors.Is(err, domain.ErrSchemaMismatch), errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrFetch):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
