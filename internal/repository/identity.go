package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"division-tracker/internal/db"
	"division-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type IdentityRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewIdentityRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *IdentityRepository {
	return &IdentityRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Save records the profile id and, when a display name is given and differs
// from the latest stored one, makes it the head of the name history. A name
// the profile carried before is moved up rather than stored twice.
func (r *IdentityRepository) Save(ctx context.Context, profile domain.ProfileIdentity, observedAt time.Time) error {
	if profile.ID == "" {
		return fmt.Errorf("profile id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	created, err := qtx.InsertProfile(ctx, profile.ID, observedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert profile %s: %w", profile.ID, err)
	}

	recorded := int64(0)
	if profile.DisplayName != "" {
		latest, err := qtx.GetLatestProfileName(ctx, profile.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to get latest name for %s: %w", profile.ID, err)
		}

		if latest != profile.DisplayName {
			id, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
			recorded, err = qtx.InsertProfileName(ctx, db.InsertProfileNameParams{
				ID:         id,
				ProfileID:  profile.ID,
				Name:       profile.DisplayName,
				ObservedAt: observedAt.UnixNano(),
			})
			if err != nil {
				return fmt.Errorf("failed to insert name %q for %s: %w", profile.DisplayName, profile.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit identity %s: %w", profile.ID, err)
	}

	r.logger.Debug().
		Str("profile_id", profile.ID).
		Str("name", profile.DisplayName).
		Bool("profile_created", created > 0).
		Bool("name_recorded", recorded > 0).
		Msg("identity saved")

	return nil
}

func (r *IdentityRepository) FindIDsByName(ctx context.Context, name string) ([]string, error) {
	ids, err := r.queries.ListProfileIDsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile ids for %q: %w", name, err)
	}
	return ids, nil
}

func (r *IdentityRepository) Get(ctx context.Context, id string, limit int) (*domain.IdentityRecord, error) {
	rows, err := r.queries.ListProfileNames(ctx, id, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list names for %s: %w", id, err)
	}

	record := &domain.IdentityRecord{
		ID:    id,
		Names: make([]domain.NameEntry, len(rows)),
	}
	for i, row := range rows {
		record.Names[i] = domain.NameEntry{
			Name:       row.Name,
			ObservedAt: time.Unix(0, row.ObservedAt).UTC(),
		}
	}
	return record, nil
}
