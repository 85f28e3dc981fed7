package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordSet(s string) []string {
	words := strings.Fields(s)
	sort.Strings(words)
	return words
}

func TestEnhanceTerms(t *testing.T) {
	assert.Equal(t, "spicy soup", EnhanceTerms("spicy soup", nil))
	assert.Equal(t, "", EnhanceTerms("", nil))

	got := EnhanceTerms("spicy soup", []string{"tomato", "soup"})
	assert.Equal(t, []string{"soup", "spicy", "tomato"}, wordSet(got))
	assert.NotContains(t, got, "  ")

	assert.Equal(t, []string{"basil"}, wordSet(EnhanceTerms("", []string{"basil"})))
}

func TestMemoryStoreQueriesAndTerms(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	defer s.Close()

	require.NoError(t, s.StoreQuery(ctx, "s1", "tomato soup"))
	require.NoError(t, s.StoreQuery(ctx, "s1", "tomato soup"))
	require.NoError(t, s.StoreTerms(ctx, "s1", []string{"tomato", "soup"}))
	require.NoError(t, s.StoreTerms(ctx, "s1", []string{"soup", "Tomato", "basil"}))

	queries, err := s.Queries(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tomato soup", "tomato soup"}, queries)

	terms, err := s.Terms(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tomato", "soup", "Tomato", "basil"}, terms)

	other, err := s.Terms(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, other)
	assert.NotNil(t, other)
}

func TestMemoryStoreEnhancedQueryScenario(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)

	enhanced, err := s.BuildEnhancedQuery(ctx, "chat", "chicken curry")
	require.NoError(t, err)
	assert.Equal(t, "chicken curry", enhanced)

	require.NoError(t, s.StoreQuery(ctx, "chat", "chicken curry"))
	require.NoError(t, s.StoreTerms(ctx, "chat", []string{"chicken", "curry"}))
	require.NoError(t, s.StoreQuery(ctx, "chat", "no coconut"))
	require.NoError(t, s.StoreTerms(ctx, "chat", []string{"no", "coconut"}))

	enhanced, err = s.BuildEnhancedQuery(ctx, "chat", "spicy")
	require.NoError(t, err)
	assert.Equal(t, []string{"chicken", "coconut", "curry", "no", "spicy"}, wordSet(enhanced))
}

func TestMemoryStoreDefaultSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	require.NoError(t, s.StoreQuery(ctx, "", "hello"))

	snap, err := s.Snapshot(ctx, DefaultID)
	require.NoError(t, err)
	assert.Equal(t, DefaultID, snap.ID)
	assert.Equal(t, []string{"hello"}, snap.Queries)
	assert.Empty(t, snap.Terms)
}

func TestMemoryStoreSnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	require.NoError(t, s.StoreTerms(ctx, "a", []string{"x"}))

	snap, err := s.Snapshot(ctx, "a")
	require.NoError(t, err)
	snap.Terms[0] = "mutated"

	terms, err := s.Terms(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, terms)
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(50*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, s.StoreTerms(ctx, "short", []string{"x"}))
	assert.Equal(t, 1, s.Len())

	require.Eventually(t, func() bool {
		terms, err := s.Terms(ctx, "short")
		return err == nil && len(terms) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryStoreConcurrentSameSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.StoreQuery(ctx, "shared", fmt.Sprintf("q%d", i))
			_ = s.StoreTerms(ctx, "shared", []string{fmt.Sprintf("t%d", i%10)})
		}(i)
	}
	wg.Wait()

	queries, err := s.Queries(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, queries, 50)

	terms, err := s.Terms(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, terms, 10)
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore(0, 0)
	assert.ErrorIs(t, s.StoreQuery(ctx, "a", "q"), context.Canceled)
}

func TestMemoryStoreExpiredSessionIsReplaced(t *testing.T) {
	ctx := context.Background()
	// Cleanup far in the future: the expired entry stays in the cache and
	// only the write path can notice it is stale.
	s := NewMemoryStore(20*time.Millisecond, time.Hour)
	require.NoError(t, s.StoreTerms(ctx, "s1", []string{"old"}))
	time.Sleep(40 * time.Millisecond)

	require.NoError(t, s.StoreTerms(ctx, "s1", []string{"new"}))
	terms, err := s.Terms(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, terms)
}

func TestMemoryStoreConcurrentWritesWithTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute, time.Millisecond)

	const writers = 64
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.StoreTerms(ctx, "hot", []string{fmt.Sprintf("w%02d", i)})
			_ = s.StoreQuery(ctx, "hot", fmt.Sprintf("query %d", i))
		}(i)
	}
	wg.Wait()

	snap, err := s.Snapshot(ctx, "hot")
	require.NoError(t, err)
	assert.Len(t, snap.Terms, writers)
	assert.Len(t, snap.Queries, writers)
}

func TestMemoryStoreTermsGrowByDisjointSets(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)

	batches := [][]string{
		{"tomato", "soup"},
		{"basil"},
		{"garlic", "bread", "butter"},
		{},
		{"saffron"},
	}
	want := 0
	for i, batch := range batches {
		require.NoError(t, s.StoreTerms(ctx, "grow", batch))
		want += len(batch)
		terms, err := s.Terms(ctx, "grow")
		require.NoError(t, err)
		assert.Len(t, terms, want, "after batch %d", i)
	}
	terms, _ := s.Terms(ctx, "grow")
	assert.Equal(t, []string{"tomato", "soup", "basil", "garlic", "bread", "butter", "saffron"}, terms)
}
