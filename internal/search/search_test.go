package search_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/search"
	"github.com/rpattn/projectledger/internal/search/searchtest"
)

func ptr[V any](v V) *V { return &v }

var bills = search.Mapping[domain.Bill]{
	Entity: "bill",
	ID:     func(b *domain.Bill) *int64 { return b.ID },
	Text: func(b *domain.Bill) []string {
		if b.Title == nil {
			return nil
		}
		return []string{*b.Title}
	},
}

func bill(id int64, title string) domain.Bill {
	return domain.Bill{ID: ptr(id), Title: ptr(title), Project: domain.RefTo(1)}
}

func ids(page domain.Page[domain.Bill]) []int64 {
	out := make([]int64, len(page.Items))
	for i, b := range page.Items {
		out[i] = *b.ID
	}
	return out
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hotel", "invoice", "march"}, search.Tokenize("Hotel invoice, MARCH", "hotel"))
	assert.Empty(t, search.Tokenize("  --  "))
}

// exerciseIndex runs the behaviour every Index implementation must share.
func exerciseIndex(t *testing.T, idx search.Index[domain.Bill]) {
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, bill(1, "Hotel invoice March")))
	require.NoError(t, idx.Index(ctx, bill(2, "Taxi invoice")))
	require.NoError(t, idx.Index(ctx, bill(3, "Hotel minibar")))

	page, err := idx.Query(ctx, "invoice", domain.Unpaged())
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids(page))
	assert.Equal(t, int64(2), page.Total)

	page, err = idx.Query(ctx, "HOTEL invoice", domain.Unpaged())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(page))

	page, err = idx.Query(ctx, "*", domain.PageRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(page))
	assert.Equal(t, int64(3), page.Total)

	// Re-indexing replaces the old terms.
	require.NoError(t, idx.Index(ctx, bill(1, "Flight")))
	page, err = idx.Query(ctx, "invoice", domain.Unpaged())
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(page))
	page, err = idx.Query(ctx, "flight", domain.Unpaged())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Flight", *page.Items[0].Title)

	require.NoError(t, idx.Remove(ctx, 2))
	require.NoError(t, idx.Remove(ctx, 2))
	page, err = idx.Query(ctx, "", domain.Unpaged())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids(page))

	page, err = idx.Query(ctx, "nothing-matches", domain.Unpaged())
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Total)

	var ie *search.IndexError
	err = idx.Index(ctx, domain.Bill{Title: ptr("unsaved")})
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, search.OpIndex, ie.Op)
	assert.ErrorIs(t, err, search.ErrNoIdentity)
}

func TestMemoryIndex(t *testing.T) {
	idx := search.NewMemoryIndex(bills)
	exerciseIndex(t, idx)
	assert.Equal(t, 2, idx.Len())
}

func TestMemoryIndex_CancelledContext(t *testing.T) {
	idx := search.NewMemoryIndex(bills)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := idx.Index(ctx, bill(1, "x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, idx.Len())
}

func TestRedisIndex(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	prefix := "projectledger-test-" + uuid.NewString()
	t.Cleanup(func() {
		keys, err := client.Keys(ctx, prefix+":*").Result()
		if err == nil && len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	})

	exerciseIndex(t, search.NewRedisIndex(client, prefix, bills))
}

func TestRecorder(t *testing.T) {
	rec := searchtest.NewRecorder[domain.Bill]()
	ctx := context.Background()

	require.NoError(t, rec.Index(ctx, bill(7, "a")))
	rec.Fail(search.OpRemove, assert.AnError)
	err := rec.Remove(ctx, 7)
	assert.ErrorIs(t, err, assert.AnError)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, search.OpIndex, calls[0].Op)
	assert.Equal(t, int64(7), calls[1].ID)
	assert.Len(t, rec.CallsOf(search.OpRemove), 1)

	rec.Fail(search.OpRemove, nil)
	assert.NoError(t, rec.Remove(ctx, 7))
	rec.Reset()
	assert.Empty(t, rec.Calls())
}
