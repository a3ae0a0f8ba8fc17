// Package rulesstore implements the RulesStore capability: per-firm
// RulesBundle persistence on disk, with a read-through cache keyed by the
// caller's original (unnormalized) firm name.
package rulesstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

var collapseWhitespace = regexp.MustCompile(`\s+`)

// normalize derives the on-disk key for a firm name: lowercase, trim, then
// collapse any run of whitespace to a single underscore.
func normalize(firmName string) string {
	trimmed := strings.TrimSpace(firmName)
	lower := strings.ToLower(trimmed)
	return collapseWhitespace.ReplaceAllString(lower, "_")
}

// Store is the file-backed RulesStore. rulesDir holds one
// <normalized_firm>_rules.json document per firm.
type Store struct {
	rulesDir string
	cache    Cache
	now      func() time.Time
}

// New constructs a Store rooted at rulesDir, creating it if necessary.
func New(rulesDir string, cache Cache) (*Store, error) {
	if err := os.MkdirAll(rulesDir, 0o755); err != nil {
		return nil, fmt.Errorf("rulesstore: create rules dir: %w", err)
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Store{rulesDir: rulesDir, cache: cache, now: time.Now}, nil
}

// WithClock overrides the store's time source, mainly for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) documentPath(firmName string) string {
	return filepath.Join(s.rulesDir, normalize(firmName)+"_rules.json")
}

// Save persists the bundle for firmName, stamping policy_version and
// last_updated at save time, and writing the document atomically via
// write-then-rename so a concurrent load never observes a partial file.
func (s *Store) Save(ctx context.Context, firmName string, accepted []rules.Rule, totalIterations int) (rules.RulesBundle, error) {
	now := s.now().UTC()
	bundle := rules.RulesBundle{
		FirmName:        firmName,
		PolicyVersion:   now.Format("2006-01"),
		LastUpdated:     now,
		TotalIterations: totalIterations,
		Rules:           accepted,
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return rules.RulesBundle{}, fmt.Errorf("rulesstore: marshal bundle: %w", err)
	}

	target := s.documentPath(firmName)
	tmp, err := os.CreateTemp(s.rulesDir, ".tmp-rules-*")
	if err != nil {
		return rules.RulesBundle{}, fmt.Errorf("rulesstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return rules.RulesBundle{}, fmt.Errorf("rulesstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return rules.RulesBundle{}, fmt.Errorf("rulesstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return rules.RulesBundle{}, fmt.Errorf("rulesstore: rename into place: %w", err)
	}

	s.cache.Set(ctx, firmName, bundle)
	return bundle, nil
}

// Load retrieves the bundle for firmName, preferring the cache. found is
// false when no document has ever been saved for this firm.
func (s *Store) Load(ctx context.Context, firmName string) (bundle rules.RulesBundle, found bool, err error) {
	if cached, ok := s.cache.Get(ctx, firmName); ok {
		return cached, true, nil
	}

	raw, readErr := os.ReadFile(s.documentPath(firmName))
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return rules.RulesBundle{}, false, nil
		}
		return rules.RulesBundle{}, false, fmt.Errorf("rulesstore: read bundle: %w", readErr)
	}

	if err := json.Unmarshal(raw, &bundle); err != nil {
		return rules.RulesBundle{}, false, fmt.Errorf("rulesstore: decode bundle: %w", err)
	}

	s.cache.Set(ctx, firmName, bundle)
	return bundle, true, nil
}
