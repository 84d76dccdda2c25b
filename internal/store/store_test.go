package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalobadob/codebreak/internal/store"
)

func result(id, winner string, ended time.Time) store.Result {
	return store.Result{
		MatchID:   id,
		Role:      "host",
		Winner:    winner,
		Guesses:   5,
		Timeouts:  1,
		StartedAt: ended.Add(-2 * time.Minute),
		EndedAt:   ended,
	}
}

func openStores(t *testing.T) map[string]store.Store {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "data", "results.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"sqlite": db,
	}
}

func TestStore_SaveRecentTally(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			saves := []store.Result{
				result("m1", store.WinnerLocal, base),
				result("m2", store.WinnerRemote, base.Add(time.Minute)),
				result("m3", store.WinnerLocal, base.Add(2*time.Minute)),
			}
			for _, r := range saves {
				if err := st.Save(ctx, r); err != nil {
					t.Fatalf("Save(%s): %v", r.MatchID, err)
				}
			}

			recent, err := st.Recent(ctx, 2)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(recent) != 2 || recent[0].MatchID != "m3" || recent[1].MatchID != "m2" {
				t.Fatalf("Recent(2) = %+v want m3, m2", recent)
			}
			if !recent[0].EndedAt.Equal(saves[2].EndedAt) {
				t.Fatalf("EndedAt = %v want %v", recent[0].EndedAt, saves[2].EndedAt)
			}
			if recent[0].Guesses != 5 || recent[0].Timeouts != 1 || recent[0].Role != "host" {
				t.Fatalf("fields not preserved: %+v", recent[0])
			}

			tally, err := st.Tally(ctx)
			if err != nil {
				t.Fatalf("Tally: %v", err)
			}
			if want := (store.Tally{Played: 3, Won: 2, Lost: 1}); tally != want {
				t.Fatalf("Tally = %+v want %+v", tally, want)
			}
		})
	}
}

func TestStore_DuplicateMatch(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.Save(ctx, result("dup", store.WinnerLocal, now)); err != nil {
				t.Fatalf("first Save: %v", err)
			}
			err := st.Save(ctx, result("dup", store.WinnerRemote, now))
			if !errors.Is(err, store.ErrDuplicate) {
				t.Fatalf("second Save = %v want ErrDuplicate", err)
			}
		})
	}
}

func TestStore_EmptyTally(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			tally, err := st.Tally(context.Background())
			if err != nil {
				t.Fatalf("Tally: %v", err)
			}
			if tally != (store.Tally{}) {
				t.Fatalf("Tally = %+v want zero", tally)
			}
			recent, err := st.Recent(context.Background(), 0)
			if err != nil || len(recent) != 0 {
				t.Fatalf("Recent = %v, %v want empty", recent, err)
			}
		})
	}
}

func TestOpenSQLite_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	for i := 0; i < 2; i++ {
		db, err := store.OpenSQLite(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		_ = db.Close()
	}
}
