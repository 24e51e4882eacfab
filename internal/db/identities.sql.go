package db

import (
	"context"
)

const insertProfile = `
INSERT INTO profiles (id, created_at) VALUES (?, ?)
ON CONFLICT (id) DO NOTHING
`

func (q *Queries) InsertProfile(ctx context.Context, id string, createdAt int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertProfile, id, createdAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertProfileName = `
INSERT INTO profile_names (id, profile_id, name, observed_at) VALUES (?, ?, ?, ?)
ON CONFLICT (profile_id, name) DO UPDATE SET observed_at = excluded.observed_at
WHERE excluded.observed_at > profile_names.observed_at
`

type InsertProfileNameParams struct {
	ID         string
	ProfileID  string
	Name       string
	ObservedAt int64
}

func (q *Queries) InsertProfileName(ctx context.Context, arg InsertProfileNameParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertProfileName, arg.ID, arg.ProfileID, arg.Name, arg.ObservedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getLatestProfileName = `
SELECT name FROM profile_names
WHERE profile_id = ?
ORDER BY observed_at DESC, rowid DESC
LIMIT 1
`

func (q *Queries) GetLatestProfileName(ctx context.Context, profileID string) (string, error) {
	row := q.db.QueryRowContext(ctx, getLatestProfileName, profileID)
	var name string
	err := row.Scan(&name)
	return name, err
}

const listProfileNames = `
SELECT name, observed_at FROM profile_names
WHERE profile_id = ?
ORDER BY observed_at DESC, rowid DESC
LIMIT ?
`

type ProfileName struct {
	Name       string
	ObservedAt int64
}

func (q *Queries) ListProfileNames(ctx context.Context, profileID string, limit int64) ([]ProfileName, error) {
	rows, err := q.db.QueryContext(ctx, listProfileNames, profileID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProfileName
	for rows.Next() {
		var i ProfileName
		if err := rows.Scan(&i.Name, &i.ObservedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listProfileIDsByName = `
SELECT profile_id FROM profile_names
WHERE lower(name) = lower(?)
GROUP BY profile_id
ORDER BY max(observed_at) DESC
`

func (q *Queries) ListProfileIDsByName(ctx context.Context, name string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listProfileIDsByName, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
