package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/nao1215/portalshot/internal/model"
)

// FingerprintChange is a URL whose fingerprint differs between two runs.
type FingerprintChange struct {
	URL      string            `json:"url"`
	Previous model.Fingerprint `json:"previous"`
	Current  model.Fingerprint `json:"current"`
}

// RunDiff compares the captured fingerprints of two runs.
// Every list is sorted by URL.
type RunDiff struct {
	OldRunID int64 `json:"old_run_id"`
	NewRunID int64 `json:"new_run_id"`

	// Changed lists URLs captured in both runs with different fingerprints.
	Changed []FingerprintChange `json:"changed"`

	// Unchanged lists URLs captured in both runs with equal fingerprints.
	Unchanged []string `json:"unchanged"`

	// Appeared lists URLs captured only in the newer run.
	Appeared []string `json:"appeared"`

	// Disappeared lists URLs captured only in the older run.
	Disappeared []string `json:"disappeared"`
}

// HasChanges reports whether anything differs between the runs.
func (d *RunDiff) HasChanges() bool {
	return len(d.Changed) > 0 || len(d.Appeared) > 0 || len(d.Disappeared) > 0
}

// CompareRuns diffs the fingerprints of oldID against newID by hash equality.
func (h *HistoryDB) CompareRuns(ctx context.Context, oldID, newID int64) (*RunDiff, error) {
	oldPrints, err := h.LatestFingerprints(ctx, oldID)
	if err != nil {
		return nil, err
	}
	newPrints, err := h.LatestFingerprints(ctx, newID)
	if err != nil {
		return nil, err
	}

	diff := &RunDiff{OldRunID: oldID, NewRunID: newID}
	for url, cur := range newPrints {
		prev, ok := oldPrints[url]
		switch {
		case !ok:
			diff.Appeared = append(diff.Appeared, url)
		case prev != cur:
			diff.Changed = append(diff.Changed, FingerprintChange{URL: url, Previous: prev, Current: cur})
		default:
			diff.Unchanged = append(diff.Unchanged, url)
		}
	}
	for url := range oldPrints {
		if _, ok := newPrints[url]; !ok {
			diff.Disappeared = append(diff.Disappeared, url)
		}
	}

	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].URL < diff.Changed[j].URL })
	sort.Strings(diff.Unchanged)
	sort.Strings(diff.Appeared)
	sort.Strings(diff.Disappeared)
	return diff, nil
}

// CompareWithPrevious diffs runID against the run saved just before it.
// It returns ErrRunNotFound when runID is the first run.
func (h *HistoryDB) CompareWithPrevious(ctx context.Context, runID int64) (*RunDiff, error) {
	var prevID int64
	err := h.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE id < ? ORDER BY id DESC LIMIT 1`, runID).Scan(&prevID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no run before %d", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find previous run: %w", err)
	}
	return h.CompareRuns(ctx, prevID, runID)
}
