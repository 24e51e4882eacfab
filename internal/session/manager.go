package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"division-tracker/internal/api"
	"division-tracker/internal/config"
	"division-tracker/internal/constants"
	"division-tracker/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

type Authenticator interface {
	Login(ctx context.Context, username, password string) (*api.SessionResponse, error)
}

// Manager owns the process-wide upstream session. Renewals are single-flight:
// concurrent callers that find the ticket expired share one renewal.
type Manager struct {
	auth     Authenticator
	username string
	password string
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	ticket domain.SessionTicket

	flight singleflight.Group
}

func NewManager(cfg *config.Config, auth Authenticator, logger zerolog.Logger) *Manager {
	return &Manager{
		auth:     auth,
		username: cfg.UbiUsername,
		password: cfg.UbiPassword,
		logger:   logger,
		now:      time.Now,
	}
}

// Ticket returns a consistent copy of the current ticket.
func (m *Manager) Ticket() domain.SessionTicket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ticket
}

func (m *Manager) Login(ctx context.Context) (domain.SessionTicket, error) {
	resp, err := m.auth.Login(ctx, m.username, m.password)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			m.logger.Error().Int("status", apiErr.Status).Int("error_code", apiErr.ErrorCode).Msg("upstream rejected login")
			return domain.SessionTicket{}, fmt.Errorf("%w: %s", domain.ErrAuth, apiErr.Message)
		}
		return domain.SessionTicket{}, fmt.Errorf("%w: failed to login: %w", domain.ErrUpstream, err)
	}

	if resp.Ticket == "" || resp.SessionID == "" || resp.Expiration == "" {
		return domain.SessionTicket{}, fmt.Errorf("%w: malformed session response", domain.ErrAuth)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, resp.Expiration)
	if err != nil {
		return domain.SessionTicket{}, fmt.Errorf("%w: malformed session expiration %q", domain.ErrAuth, resp.Expiration)
	}

	ticket := domain.SessionTicket{
		Ticket:    resp.Ticket,
		SessionID: resp.SessionID,
		ExpiresAt: expiresAt,
	}

	m.mu.Lock()
	m.ticket = ticket
	m.mu.Unlock()

	m.logger.Info().Time("expires_at", expiresAt).Msg("upstream session renewed")
	return ticket, nil
}

// EnsureValid renews the ticket when it is expired, with at most
// MaxLoginAttempts logins per renewal.
func (m *Manager) EnsureValid(ctx context.Context) error {
	if !m.Ticket().Expired(m.now()) {
		return nil
	}

	// the renewal outlives any single caller's cancellation
	renewCtx := context.WithoutCancel(ctx)
	ch := m.flight.DoChan("renew", func() (any, error) {
		return nil, m.renew(renewCtx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (m *Manager) renew(ctx context.Context) error {
	ctx, span := otel.Tracer("division-tracker/session").Start(ctx, "session.renew")
	defer span.End()

	attempts := 0
	for m.Ticket().Expired(m.now()) {
		if attempts >= constants.MaxLoginAttempts {
			span.SetStatus(codes.Error, "renewal exhausted")
			m.logger.Error().Int("attempts", attempts).Msg("session renewal exhausted")
			return fmt.Errorf("%w after %d attempts", domain.ErrRenewalExhausted, attempts)
		}
		attempts++

		loginCtx, cancel := context.WithTimeout(ctx, constants.LoginTimeout)
		_, err := m.Login(loginCtx)
		cancel()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "login failed")
			return err
		}
	}

	span.SetAttributes(attribute.Int("login.attempts", attempts))
	return nil
}

// Credentials validates the session and returns ticket and session id read
// together.
func (m *Manager) Credentials(ctx context.Context) (api.Credentials, error) {
	if err := m.EnsureValid(ctx); err != nil {
		return api.Credentials{}, err
	}

	t := m.Ticket()
	if t.Expired(m.now()) {
		return api.Credentials{}, domain.ErrRenewalExhausted
	}
	return api.Credentials{Ticket: t.Ticket, SessionID: t.SessionID}, nil
}
