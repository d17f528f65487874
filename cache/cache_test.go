package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore is an in-memory Store. failGets/failSets simulate a degraded
// backend without taking it fully down.
type fakeStore struct {
	data     map[string][]byte
	failGets bool
	failSets bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failGets {
		return nil, errors.New("store unavailable")
	}
	data, ok := s.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return data, nil
}

func (s *fakeStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.failSets {
		return errors.New("store unavailable")
	}
	s.data[key] = value
	return nil
}

func (s *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *fakeStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestCache() (*Cache, *fakeStore) {
	store := newFakeStore()
	return New(store, zap.NewNop()), store
}

func TestGetOrPopulateMissLoadsAndRepopulates(t *testing.T) {
	c, store := newTestCache()
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (record, error) {
		loads++
		return record{ID: "a1", Name: "first"}, nil
	}

	got, err := GetOrPopulate(ctx, c, "records:a1", false, loader)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)
	assert.Equal(t, 1, loads)
	assert.Contains(t, store.data, "records:a1")

	// second read is served from the cache
	got, err = GetOrPopulate(ctx, c, "records:a1", false, loader)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)
	assert.Equal(t, 1, loads)
}

func TestGetOrPopulateBypassSkipsCacheBothWays(t *testing.T) {
	c, store := newTestCache()
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (record, error) {
		loads++
		return record{ID: "a1"}, nil
	}

	for i := 0; i < 2; i++ {
		_, err := GetOrPopulate(ctx, c, "records:a1", true, loader)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, loads)
	assert.Empty(t, store.data)
}

func TestGetOrPopulateLoaderErrorPropagates(t *testing.T) {
	c, store := newTestCache()

	boom := errors.New("db down")
	_, err := GetOrPopulate(context.Background(), c, "records:a1", false,
		func(ctx context.Context) (record, error) { return record{}, boom })

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestCorruptEntryIsDroppedAndTreatedAsMiss(t *testing.T) {
	c, store := newTestCache()
	ctx := context.Background()

	store.data["records:a1"] = []byte("{not json")

	loads := 0
	got, err := GetOrPopulate(ctx, c, "records:a1", false,
		func(ctx context.Context) (record, error) {
			loads++
			return record{ID: "a1", Name: "fresh"}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)
	assert.Equal(t, 1, loads)
	// the corrupt value was replaced by the reloaded one
	assert.JSONEq(t, `{"id":"a1","name":"fresh"}`, string(store.data["records:a1"]))
}

func TestDegradedStoreFallsBackToLoader(t *testing.T) {
	c, store := newTestCache()
	store.failGets = true
	store.failSets = true

	got, err := GetOrPopulate(context.Background(), c, "records:a1", false,
		func(ctx context.Context) (record, error) {
			return record{ID: "a1", Name: "from db"}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "from db", got.Name)
}

func TestListOrPopulateCachesPageWithSiblingTotal(t *testing.T) {
	c, store := newTestCache()
	ctx := context.Background()
	ks := NewKeys("hospitals", "")

	loads := 0
	loader := func(ctx context.Context) ([]record, int, error) {
		loads++
		return []record{{ID: "h1"}, {ID: "h2"}}, 42, nil
	}

	items, total, err := ListOrPopulate(ctx, c, ks, 1, false, loader)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 42, total)
	assert.Contains(t, store.data, "hospitals:page:1")
	assert.Contains(t, store.data, "hospitals:total")

	items, total, err = ListOrPopulate(ctx, c, ks, 1, false, loader)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 42, total)
	assert.Equal(t, 1, loads)
}

func TestListOrPopulateHitRequiresBothKeys(t *testing.T) {
	c, store := newTestCache()
	ctx := context.Background()
	ks := NewKeys("hospitals", "")

	loads := 0
	loader := func(ctx context.Context) ([]record, int, error) {
		loads++
		return []record{{ID: "h1"}}, 7, nil
	}

	_, _, err := ListOrPopulate(ctx, c, ks, 1, false, loader)
	require.NoError(t, err)
	require.Equal(t, 1, loads)

	// losing the total alone forces a reload of the page as well
	delete(store.data, "hospitals:total")
	_, total, err := ListOrPopulate(ctx, c, ks, 1, false, loader)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, 2, loads)
}

func TestMutateAndInvalidateRefreshesEntityAndDropsListings(t *testing.T) {
	c, store := newTestCache()
	ctx := context.Background()
	ks := NewKeys("patients:appointments", "p1")

	// stale listing state under the same scope
	store.data[ks.Page(1)] = []byte(`[]`)
	store.data[ks.Page(2)] = []byte(`[]`)
	store.data[ks.Total()] = []byte(`9`)
	store.data[ks.Upcoming()] = []byte(`[]`)
	// a different scope must survive the invalidation
	other := NewKeys("patients:appointments", "p2")
	store.data[other.Page(1)] = []byte(`[]`)

	got, err := MutateAndInvalidate(ctx, c, ks, "a1",
		func(ctx context.Context) (record, error) {
			return record{ID: "a1", Name: "updated"}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "updated", got.Name)

	assert.Contains(t, store.data, ks.Entity("a1"))
	assert.NotContains(t, store.data, ks.Page(1))
	assert.NotContains(t, store.data, ks.Page(2))
	assert.NotContains(t, store.data, ks.Total())
	assert.NotContains(t, store.data, ks.Upcoming())
	assert.Contains(t, store.data, other.Page(1))
}

func TestMutateAndInvalidateMutatorErrorLeavesCacheUntouched(t *testing.T) {
	c, store := newTestCache()
	ks := NewKeys("patients:appointments", "p1")
	store.data[ks.Page(1)] = []byte(`[]`)

	boom := errors.New("constraint violation")
	_, err := MutateAndInvalidate(context.Background(), c, ks, "a1",
		func(ctx context.Context) (record, error) { return record{}, boom })

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, store.data, ks.Page(1))
}
