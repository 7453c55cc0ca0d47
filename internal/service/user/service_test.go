package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskdesk/internal/model"
	"taskdesk/internal/testutil"
)

type fakeCache struct {
	users       []model.User
	hit         bool
	gen         int64
	sets        int
	invalidated int
}

func (c *fakeCache) Get(context.Context) ([]model.User, int64, bool) {
	return c.users, c.gen, c.hit
}

func (c *fakeCache) Set(_ context.Context, gen int64, users []model.User) {
	if gen != c.gen {
		return
	}
	c.sets++
	c.users, c.hit = users, true
}

func (c *fakeCache) Invalidate(context.Context) {
	c.invalidated++
	c.gen++
	c.users, c.hit = nil, false
}

// racingStore runs onList after taking its snapshot and before returning it.
type racingStore struct {
	UserStore
	onList func()
}

func (r *racingStore) List(ctx context.Context) ([]model.User, error) {
	users, err := r.UserStore.List(ctx)
	if r.onList != nil {
		hook := r.onList
		r.onList = nil
		hook()
	}
	return users, err
}

func steppingClock() func() time.Time {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestCreate_AssignsIDAndRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	svc := NewService(store.Users(), zap.NewNop())

	u, err := svc.Create(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Ana", u.Name)

	_, err = svc.Create(ctx, "Ana Again", "ana@x.com")
	assert.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, 1, store.Calls("users.Create"))
}

func TestCreate_RequiresNameAndEmail(t *testing.T) {
	store := testutil.NewMemStore()
	svc := NewService(store.Users(), zap.NewNop())

	_, err := svc.Create(context.Background(), "  ", "ana@x.com")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(context.Background(), "Ana", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, store.TotalCalls())
}

func TestCreate_StoreFailureIsWrapped(t *testing.T) {
	store := testutil.NewMemStore()
	boom := errors.New("connection reset")
	store.Err = boom
	svc := NewService(store.Users(), zap.NewNop())

	_, err := svc.Create(context.Background(), "Ana", "ana@x.com")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUserExists)
}

func TestList_OldestFirst(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	svc := NewService(store.Users(), zap.NewNop(), WithClock(steppingClock()))

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		_, err := svc.Create(ctx, "n", email)
		require.NoError(t, err)
	}

	users, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.Equal(t, "c@x.com", users[2].Email)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	svc := NewService(testutil.NewMemStore().Users(), zap.NewNop())

	users, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestList_ServesFromCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	cache := &fakeCache{}
	svc := NewService(store.Users(), zap.NewNop(), WithCache(cache))

	_, err := svc.Create(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)

	_, err = svc.List(ctx)
	require.NoError(t, err)
	_, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Calls("users.List"))
	assert.Equal(t, 1, cache.sets)

	_, err = svc.Create(ctx, "Bo", "bo@x.com")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.invalidated)

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 2, store.Calls("users.List"))
}

func TestList_CreateDuringMissIsNotHidden(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{UserStore: testutil.NewMemStore().Users()}
	cache := &fakeCache{}
	svc := NewService(store, zap.NewNop(), WithCache(cache))

	store.onList = func() {
		_, err := svc.Create(ctx, "Ana", "ana@x.com")
		require.NoError(t, err)
	}

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Zero(t, cache.sets)

	users, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ana@x.com", users[0].Email)
}
