package fingerprint

import (
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"slices"
	"sync"

	"github.com/nao1215/portalshot/internal/model"
)

// Store owns the fingerprint state of one run.
type Store struct {
	mu      sync.Mutex
	hasher  Hasher
	latest  map[string]model.Fingerprint
	groups  []*model.Group
	byPrint map[model.Fingerprint]*model.Group
	changes []model.ChangeRecord
}

// Option configures a Store.
type Option func(*Store)

// WithHasher replaces the average hash, mainly for tests.
func WithHasher(h Hasher) Option {
	return func(s *Store) {
		s.hasher = h
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		hasher:  AverageHash,
		latest:  make(map[string]model.Fingerprint),
		byPrint: make(map[model.Fingerprint]*model.Group),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record fingerprints img for url and appends one change record.
// A nil, empty or unhashable image is recorded as a failure and its
// error is returned.
func (s *Store) Record(url string, img image.Image) (model.Fingerprint, error) {
	fp, err := s.hasher(img)
	if err != nil {
		s.RecordFailure(url)
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.latest[url]
	switch {
	case !seen:
		s.changes = append(s.changes, model.ChangeRecord{URL: url, Current: fp, Status: model.StatusFirstEntry})
		s.join(url, fp)
	case prev != fp:
		s.changes = append(s.changes, model.ChangeRecord{URL: url, Previous: prev, Current: fp, Status: model.StatusHashChanged})
		s.leave(url, prev)
		s.join(url, fp)
	default:
		s.changes = append(s.changes, model.ChangeRecord{URL: url, Previous: prev, Current: fp, Status: model.StatusHashUnchanged})
	}
	s.latest[url] = fp
	return fp, nil
}

// RecordFile decodes the PNG or JPEG at path and records it.
func (s *Store) RecordFile(url, path string) (model.Fingerprint, error) {
	f, err := os.Open(path) //nolint:gosec // path is produced by the capture step
	if err != nil {
		s.RecordFailure(url)
		return "", fmt.Errorf("failed to open screenshot: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		s.RecordFailure(url)
		return "", fmt.Errorf("%w: %w", ErrCorruptImage, err)
	}
	return s.Record(url, img)
}

// RecordFailure appends an error record for url.
// Earlier fingerprints and group membership of url are kept.
func (s *Store) RecordFailure(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, model.ChangeRecord{URL: url, Status: model.StatusError})
}

// join appends url to the group of fp, creating the group if needed.
// Callers hold s.mu.
func (s *Store) join(url string, fp model.Fingerprint) {
	g, ok := s.byPrint[fp]
	if !ok {
		g = &model.Group{Fingerprint: fp}
		s.byPrint[fp] = g
		s.groups = append(s.groups, g)
	}
	g.URLs = append(g.URLs, url)
}

// leave removes url from the group of fp and drops the group once empty.
// Callers hold s.mu.
func (s *Store) leave(url string, fp model.Fingerprint) {
	g, ok := s.byPrint[fp]
	if !ok {
		return
	}
	g.URLs = slices.DeleteFunc(g.URLs, func(u string) bool { return u == url })
	if len(g.URLs) > 0 {
		return
	}
	delete(s.byPrint, fp)
	s.groups = slices.DeleteFunc(s.groups, func(other *model.Group) bool { return other == g })
}

// Groups returns a copy of the groups in formation order.
func (s *Store) Groups() []model.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Group, len(s.groups))
	for i, g := range s.groups {
		out[i] = model.Group{Fingerprint: g.Fingerprint, URLs: slices.Clone(g.URLs)}
	}
	return out
}

// Changes returns a copy of the change log.
func (s *Store) Changes() []model.ChangeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.changes)
}

// Fingerprint returns the latest fingerprint of url.
func (s *Store) Fingerprint(url string) (model.Fingerprint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.latest[url]
	return fp, ok
}
