package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"division-tracker/internal/database"
	"division-tracker/internal/db"
	"division-tracker/internal/domain"

	"github.com/rs/zerolog"
)

func newTestRepository(t *testing.T) (*IdentityRepository, *sql.DB) {
	t.Helper()
	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "identities.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewIdentityRepository(sqlDB, db.New(sqlDB), zerolog.Nop()), sqlDB
}

func countNames(t *testing.T, sqlDB *sql.DB, profileID, name string) int {
	t.Helper()
	var n int
	err := sqlDB.QueryRow(`SELECT count(*) FROM profile_names WHERE profile_id = ? AND name = ?`, profileID, name).Scan(&n)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestSaveSameNameTwiceKeepsOneRow(t *testing.T) {
	repo, sqlDB := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := domain.ProfileIdentity{ID: "id-1", DisplayName: "Agent47"}
	if err := repo.Save(ctx, p, now); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := repo.Save(ctx, p, now.Add(time.Minute)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	if got := countNames(t, sqlDB, "id-1", "Agent47"); got != 1 {
		t.Errorf("history rows = %d, want 1", got)
	}

	var profiles int
	if err := sqlDB.QueryRow(`SELECT count(*) FROM profiles WHERE id = ?`, "id-1").Scan(&profiles); err != nil {
		t.Fatal(err)
	}
	if profiles != 1 {
		t.Errorf("profile rows = %d, want 1", profiles)
	}
}

func TestSaveNewNameAppendsHistory(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Save(ctx, domain.ProfileIdentity{ID: "id-1", DisplayName: "OldName"}, now); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, domain.ProfileIdentity{ID: "id-1", DisplayName: "NewName"}, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	record, err := repo.Get(ctx, "id-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Names) != 2 {
		t.Fatalf("names = %v, want 2 entries", record.Names)
	}
	if record.Names[0].Name != "NewName" || record.Names[1].Name != "OldName" {
		t.Errorf("names not most-recent-first: %v", record.Names)
	}
	if !record.Names[0].ObservedAt.Equal(now.Add(time.Hour)) {
		t.Errorf("observed_at = %v", record.Names[0].ObservedAt)
	}
}

func TestSaveReturningNameMovesToHead(t *testing.T) {
	repo, sqlDB := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"Alpha", "Bravo", "Alpha"} {
		p := domain.ProfileIdentity{ID: "id-1", DisplayName: name}
		if err := repo.Save(ctx, p, now.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	if got := countNames(t, sqlDB, "id-1", "Alpha"); got != 1 {
		t.Errorf("Alpha rows = %d, want 1", got)
	}

	record, err := repo.Get(ctx, "id-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Names) != 2 || record.Names[0].Name != "Alpha" || record.Names[1].Name != "Bravo" {
		t.Fatalf("names = %v, want [Alpha Bravo]", record.Names)
	}
	if !record.Names[0].ObservedAt.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("Alpha observed_at = %v, want %v", record.Names[0].ObservedAt, now.Add(2*time.Hour))
	}
}

func TestSaveOlderObservationKeepsNewerTimestamp(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	saves := []struct {
		name string
		at   time.Time
	}{
		{"Alpha", now.Add(2 * time.Hour)},
		{"Bravo", now.Add(3 * time.Hour)},
		{"Alpha", now},
	}
	for _, s := range saves {
		if err := repo.Save(ctx, domain.ProfileIdentity{ID: "id-1", DisplayName: s.name}, s.at); err != nil {
			t.Fatalf("save %s: %v", s.name, err)
		}
	}

	record, err := repo.Get(ctx, "id-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Names) != 2 || record.Names[0].Name != "Bravo" {
		t.Fatalf("names = %v, want Bravo first", record.Names)
	}
	if !record.Names[1].ObservedAt.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("Alpha observed_at = %v, want it unchanged", record.Names[1].ObservedAt)
	}
}

func TestSaveWithoutNameOnlyCreatesProfile(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Save(ctx, domain.ProfileIdentity{ID: "id-2"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	record, err := repo.Get(ctx, "id-2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Names) != 0 {
		t.Errorf("names = %v, want none", record.Names)
	}
}

func TestFindIDsByNameIsCaseInsensitive(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mustSave := func(id, name string, at time.Time) {
		if err := repo.Save(ctx, domain.ProfileIdentity{ID: id, DisplayName: name}, at); err != nil {
			t.Fatal(err)
		}
	}
	mustSave("id-a", "Rogue", now)
	mustSave("id-b", "ROGUE", now.Add(time.Minute))
	mustSave("id-b", "Renamed", now.Add(2*time.Minute))
	mustSave("id-c", "Other", now)

	ids, err := repo.FindIDsByName(ctx, "rogue")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["id-a"] || !seen["id-b"] {
		t.Errorf("ids = %v, want id-a and id-b", ids)
	}

	none, err := repo.FindIDsByName(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("ids = %v, want none", none)
	}
}

func TestSaveRequiresID(t *testing.T) {
	repo, _ := newTestRepository(t)
	if err := repo.Save(context.Background(), domain.ProfileIdentity{DisplayName: "x"}, time.Now()); err == nil {
		t.Fatal("expected error for empty id")
	}
}
