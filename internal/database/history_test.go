package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/portalshot/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newResult builds a run whose change log records one capture per entry of
// prints; an empty fingerprint records a failure.
func newResult(prints map[string]model.Fingerprint, order ...string) *model.RunResult {
	started := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	r := &model.RunResult{
		InputPath:  "targets.csv",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Minute),
	}
	groups := make(map[model.Fingerprint]bool)
	for _, url := range order {
		r.Targets = append(r.Targets, model.NewTarget(url))
		fp := prints[url]
		if fp == "" {
			r.Changes = append(r.Changes, model.ChangeRecord{URL: url, Status: model.StatusError})
			continue
		}
		r.Captured = append(r.Captured, model.NewTarget(url))
		r.Changes = append(r.Changes, model.ChangeRecord{URL: url, Current: fp, Status: model.StatusFirstEntry})
		if !groups[fp] {
			groups[fp] = true
			r.Groups = append(r.Groups, model.Group{Fingerprint: fp, URLs: []string{url}})
		}
	}
	return r
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Errorf("expected ErrDatabaseNotFound, got %v", err)
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := db.SaveRun(context.Background(), newResult(nil, "http://b.com")); err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), 0)
		if err != nil || len(runs) != 1 {
			t.Errorf("expected 1 run, got %d (%v)", len(runs), err)
		}
	})
}

// TestSaveRun tests saving and reading back runs.
func TestSaveRun(t *testing.T) {
	t.Parallel()

	t.Run("stores summary and records", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()
		result := newResult(map[string]model.Fingerprint{
			"https://a.com":      "ffff0000ffff0000",
			"https://c.com:8443": "ffff0000ffff0000",
		}, "https://a.com", "http://b.com", "https://c.com:8443")

		id, err := db.SaveRun(ctx, result)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		run, err := db.GetRun(ctx, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.TargetCount != 3 || run.CapturedCount != 2 || run.FailedCount != 1 || run.GroupCount != 1 {
			t.Errorf("unexpected summary %+v", run)
		}
		if !run.StartedAt.Equal(result.StartedAt) || !run.FinishedAt.Equal(result.FinishedAt) {
			t.Errorf("timestamps not preserved: %v %v", run.StartedAt, run.FinishedAt)
		}

		records, err := db.GetRunRecords(ctx, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}
		if records[1].URL != "http://b.com" || records[1].Status != model.StatusError || records[1].Current != "" {
			t.Errorf("unexpected error record %+v", records[1])
		}
		if records[2].Current != "ffff0000ffff0000" {
			t.Errorf("unexpected fingerprint %q", records[2].Current)
		}
	})

	t.Run("lists most recent runs first", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if _, err := db.SaveRun(ctx, newResult(nil, "http://b.com")); err != nil {
				t.Fatal(err)
			}
		}

		runs, err := db.ListRuns(ctx, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 2 || runs[0].ID != 3 || runs[1].ID != 2 {
			t.Errorf("unexpected runs %+v", runs)
		}

		latest, err := db.LatestRunID(ctx)
		if err != nil || latest != 3 {
			t.Errorf("expected latest run 3, got %d (%v)", latest, err)
		}
	})

	t.Run("unknown run is reported", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		if _, err := db.GetRunRecords(context.Background(), 42); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		if _, err := db.LatestRunID(context.Background()); !errors.Is(err, ErrNoRuns) {
			t.Errorf("expected ErrNoRuns, got %v", err)
		}
	})
}

// TestLatestFingerprints tests per-URL fingerprint extraction.
func TestLatestFingerprints(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	result := newResult(map[string]model.Fingerprint{"https://a.com": "0000000000000001"}, "https://a.com")
	result.Changes = append(result.Changes,
		model.ChangeRecord{URL: "https://a.com", Previous: "0000000000000001", Current: "0000000000000002", Status: model.StatusHashChanged},
		model.ChangeRecord{URL: "https://a.com", Status: model.StatusError},
	)

	id, err := db.SaveRun(ctx, result)
	if err != nil {
		t.Fatal(err)
	}
	prints, err := db.LatestFingerprints(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prints["https://a.com"] != "0000000000000002" {
		t.Errorf("expected last successful fingerprint, got %q", prints["https://a.com"])
	}
}

// TestCompareRuns tests the cross-run diff.
func TestCompareRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	oldID, err := db.SaveRun(ctx, newResult(map[string]model.Fingerprint{
		"https://a.com": "0000000000000001",
		"https://b.com": "0000000000000002",
		"https://c.com": "0000000000000003",
	}, "https://a.com", "https://b.com", "https://c.com"))
	if err != nil {
		t.Fatal(err)
	}
	newID, err := db.SaveRun(ctx, newResult(map[string]model.Fingerprint{
		"https://a.com": "0000000000000001",
		"https://b.com": "00000000000000ff",
		"https://d.com": "0000000000000004",
	}, "https://a.com", "https://b.com", "https://c.com", "https://d.com"))
	if err != nil {
		t.Fatal(err)
	}

	t.Run("classifies every URL", func(t *testing.T) {
		t.Parallel()

		diff, err := db.CompareRuns(ctx, oldID, newID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(diff.Changed) != 1 || diff.Changed[0].URL != "https://b.com" || diff.Changed[0].Current != "00000000000000ff" {
			t.Errorf("unexpected changed %+v", diff.Changed)
		}
		if len(diff.Unchanged) != 1 || diff.Unchanged[0] != "https://a.com" {
			t.Errorf("unexpected unchanged %v", diff.Unchanged)
		}
		if len(diff.Appeared) != 1 || diff.Appeared[0] != "https://d.com" {
			t.Errorf("unexpected appeared %v", diff.Appeared)
		}
		// c.com failed in the new run, so it is no longer captured.
		if len(diff.Disappeared) != 1 || diff.Disappeared[0] != "https://c.com" {
			t.Errorf("unexpected disappeared %v", diff.Disappeared)
		}
		if !diff.HasChanges() {
			t.Error("expected changes")
		}
	})

	t.Run("compares with the previous run", func(t *testing.T) {
		t.Parallel()

		diff, err := db.CompareWithPrevious(ctx, newID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff.OldRunID != oldID {
			t.Errorf("expected previous run %d, got %d", oldID, diff.OldRunID)
		}
	})

	t.Run("first run has no previous run", func(t *testing.T) {
		t.Parallel()

		if _, err := db.CompareWithPrevious(ctx, oldID); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("same run has no changes", func(t *testing.T) {
		t.Parallel()

		diff, err := db.CompareRuns(ctx, oldID, oldID)
		if err != nil {
			t.Fatal(err)
		}
		if diff.HasChanges() {
			t.Errorf("unexpected changes %+v", diff)
		}
	})
}
