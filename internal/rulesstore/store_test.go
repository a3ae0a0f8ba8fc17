package rulesstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

func fixedClock() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) }

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Acme Capital":    "acme_capital",
		"  Acme Capital ": "acme_capital",
		"ACME   CAPITAL":  "acme_capital",
		"acme\tcapital\n": "acme_capital",
		"solo":            "solo",
	}
	for input, want := range cases {
		require.Equal(t, want, normalize(input), "normalize(%q)", input)
	}
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	store, err := New(t.TempDir(), NewMemoryCache())
	require.NoError(t, err)
	store = store.WithClock(fixedClock)

	accepted := []rules.Rule{{RuleID: "r1", RuleName: "Rule One", Active: true, ValidationHistory: []rules.ValidationAttempt{{AttemptNumber: 1, Passed: true}}}}
	saved, err := store.Save(context.Background(), "Acme Capital", accepted, 3)
	require.NoError(t, err)
	require.Equal(t, "2025-12", saved.PolicyVersion)

	loaded, found, err := store.Load(context.Background(), "Acme Capital")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, saved.FirmName, loaded.FirmName)
	require.Len(t, loaded.Rules, 1)
	require.Equal(t, 3, loaded.TotalIterations)
}

func TestStore_LoadMissingFirmReturnsNotFound(t *testing.T) {
	store, err := New(t.TempDir(), NewMemoryCache())
	require.NoError(t, err)

	_, found, err := store.Load(context.Background(), "Nonexistent Firm")
	require.NoError(t, err)
	require.False(t, found)
}

func TestStore_SavePersistsEvenWithZeroRules(t *testing.T) {
	store, err := New(t.TempDir(), NewMemoryCache())
	require.NoError(t, err)
	store = store.WithClock(fixedClock)

	bundle, err := store.Save(context.Background(), "Acme Capital", nil, 2)
	require.NoError(t, err)
	require.Empty(t, bundle.Rules)

	loaded, found, err := store.Load(context.Background(), "Acme Capital")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, loaded.Rules)
}

func TestStore_LoadFromDiskPopulatesCacheAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	store1, err := New(dir, NewMemoryCache())
	require.NoError(t, err)
	store1 = store1.WithClock(fixedClock)

	_, err = store1.Save(context.Background(), "Acme Capital", nil, 1)
	require.NoError(t, err)

	store2, err := New(dir, NewMemoryCache())
	require.NoError(t, err)
	loaded, found, err := store2.Load(context.Background(), "Acme Capital")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Acme Capital", loaded.FirmName)

	cached, ok := store2.cache.Get(context.Background(), "Acme Capital")
	require.True(t, ok)
	require.Equal(t, "Acme Capital", cached.FirmName)
}

func TestStore_ReingestionReplacesEntireBundle(t *testing.T) {
	store, err := New(t.TempDir(), NewMemoryCache())
	require.NoError(t, err)
	store = store.WithClock(fixedClock)

	first := []rules.Rule{{RuleID: "r1", RuleName: "Rule One", Active: true}}
	_, err = store.Save(context.Background(), "Acme Capital", first, 1)
	require.NoError(t, err)

	second := []rules.Rule{{RuleID: "r2", RuleName: "Rule Two", Active: true}}
	_, err = store.Save(context.Background(), "Acme Capital", second, 1)
	require.NoError(t, err)

	loaded, found, err := store.Load(context.Background(), "Acme Capital")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, loaded.Rules, 1)
	require.Equal(t, "r2", loaded.Rules[0].RuleID)
}
