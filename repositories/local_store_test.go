package repositories

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trailcatalog-api/models"
)

func newFileStore(t *testing.T) (*LocalStore, string) {
	path := filepath.Join(t.TempDir(), "honzovy_trasy_data.json")
	store := NewLocalStore(NewFileSlot(path), NewChangeFeed(nil, testLogger()), testLogger())
	store.now = steppingClock()
	return store, path
}

func TestLocalStoreCreateAndList(t *testing.T) {
	ctx := ctxWithTimeout(t)
	store, _ := newFileStore(t)

	created, err := store.Create(ctx, Scope{}, sampleRoute("Sněžka"))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-z]{7}$`), created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Empty(t, created.CreatedBy)
	assert.Nil(t, created.UpdatedAt)
	assert.Equal(t, models.DifficultyMedium, created.Difficulty)
	assert.Equal(t, models.RouteTypeLoop, created.RouteType)

	routes, err := store.List(ctx, Scope{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, created.ID, routes[0].ID)
	assert.Equal(t, "Sněžka", routes[0].Name)
	assert.Equal(t, []string{models.SuitablePedestrians}, []string(routes[0].SuitableFor))
}

func TestLocalStoreEmptySlotListsNothing(t *testing.T) {
	store, _ := newFileStore(t)

	routes, err := store.List(ctxWithTimeout(t), Scope{})
	require.NoError(t, err)
	assert.NotNil(t, routes)
	assert.Empty(t, routes)
}

func TestLocalStoreCorruptSlotReadsEmpty(t *testing.T) {
	ctx := ctxWithTimeout(t)
	store, path := newFileStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	routes, err := store.List(ctx, Scope{})
	require.NoError(t, err)
	assert.Empty(t, routes)

	_, err = store.Create(ctx, Scope{}, sampleRoute("Ještěd"))
	require.NoError(t, err)
	routes, err = store.List(ctx, Scope{})
	require.NoError(t, err)
	assert.Len(t, routes, 1)
}

func TestLocalStoreUpdateMergesFields(t *testing.T) {
	ctx := ctxWithTimeout(t)
	store, _ := newFileStore(t)
	created, err := store.Create(ctx, Scope{}, sampleRoute("Říp"))
	require.NoError(t, err)

	desc := "Nový popis"
	updated, err := store.Update(ctx, Scope{}, created.ID, models.RoutePatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)
	assert.Equal(t, created.Name, updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Nil(t, updated.UpdatedAt)

	stored, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, desc, stored.Description)
}

func TestLocalStoreUpdateMissing(t *testing.T) {
	store, _ := newFileStore(t)
	name := "x"
	_, err := store.Update(ctxWithTimeout(t), Scope{}, "missing", models.RoutePatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreDeleteIsIdempotent(t *testing.T) {
	ctx := ctxWithTimeout(t)
	store, path := newFileStore(t)
	keep, err := store.Create(ctx, Scope{}, sampleRoute("A"))
	require.NoError(t, err)
	gone, err := store.Create(ctx, Scope{}, sampleRoute("B"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, Scope{}, gone.ID))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, Scope{}, gone.ID))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	routes, err := store.List(ctx, Scope{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, keep.ID, routes[0].ID)
}

func TestLocalStoreRejectsTooManyImages(t *testing.T) {
	route := sampleRoute("Foto")
	for i := 0; i < models.MaxImages+1; i++ {
		route.Images = append(route.Images, "data:image/png;base64,AAAA")
	}
	store, _ := newFileStore(t)
	_, err := store.Create(ctxWithTimeout(t), Scope{}, route)
	assert.ErrorIs(t, err, models.ErrImageLimit)
}

func TestLocalStoreRedisSlot(t *testing.T) {
	ctx := ctxWithTimeout(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewLocalStore(NewRedisSlot(client, "honzovy_trasy_data"), NewChangeFeed(nil, testLogger()), testLogger())
	created, err := store.Create(ctx, Scope{}, sampleRoute("Lysá hora"))
	require.NoError(t, err)

	raw, err := mr.Get("honzovy_trasy_data")
	require.NoError(t, err)
	assert.Contains(t, raw, created.ID)
	assert.Contains(t, raw, `"suitableFor":["pěší"]`)

	fetched, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lysá hora", fetched.Name)
}

func TestLocalStoreSubscriptionSeesWrites(t *testing.T) {
	ctx := ctxWithTimeout(t)
	store, _ := newFileStore(t)

	sub, err := store.Subscribe(ctx, Scope{})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	waitSnapshot(t, sub, func(s Snapshot) bool { return len(s.Routes) == 0 })

	_, err = store.Create(ctx, Scope{}, sampleRoute("Praděd"))
	require.NoError(t, err)
	snap := waitSnapshot(t, sub, func(s Snapshot) bool { return len(s.Routes) == 1 })
	assert.Equal(t, "Praděd", snap.Routes[0].Name)
}

func TestNewLocalIDAvoidsTaken(t *testing.T) {
	taken := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		id, err := newLocalID(taken)
		require.NoError(t, err)
		assert.Len(t, id, localIDLength)
		_, dup := taken[id]
		assert.False(t, dup)
		taken[id] = struct{}{}
	}
}
