package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeExchanger struct {
	mu         sync.Mutex
	credential string
	err        error
	calls      int
	block      chan struct{}
}

func (e *fakeExchanger) Exchange(_ context.Context, _ string) (string, error) {
	e.mu.Lock()
	e.calls++
	block := e.block
	e.mu.Unlock()
	if block != nil {
		<-block
	}
	return e.credential, e.err
}

func newTestController(exchanger Exchanger) (*Controller, *memStore, *fakeClock) {
	kv := newMemStore()
	clk := &fakeClock{now: time.UnixMilli(1700000000000)}
	return NewController(kv, clk, exchanger, 15*time.Minute), kv, clk
}

func TestHandleProviderCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("successful exchange logs in", func(t *testing.T) {
		exchanger := &fakeExchanger{credential: "app-1"}
		controller, kv, _ := newTestController(exchanger)

		require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))

		assert.True(t, controller.IsLoggedIn())
		credential, ok := controller.Credential()
		assert.True(t, ok)
		assert.Equal(t, "app-1", credential)
		assert.Equal(t, RouteLanding, controller.CurrentRoute())
		assert.True(t, controller.ShowOnboarding())
		assert.Empty(t, controller.LoginError())

		assert.Equal(t, "app-1", kv.data["credential"])
		assert.True(t, kv.has("last_activity"))
		assert.Equal(t, RouteLanding, kv.data["current_route"])
	})

	t.Run("empty provider credential is rejected without exchange", func(t *testing.T) {
		exchanger := &fakeExchanger{credential: "app-1"}
		controller, kv, _ := newTestController(exchanger)

		require.NoError(t, controller.HandleProviderCallback(ctx, ""))

		assert.Zero(t, exchanger.calls)
		assert.False(t, controller.IsLoggedIn())
		assert.NotEmpty(t, controller.LoginError())
		assert.False(t, kv.has("credential"))
	})

	t.Run("exchange failure surfaces a generic message only", func(t *testing.T) {
		exchanger := &fakeExchanger{err: errors.New("upstream said: invalid_grant (code 400)")}
		controller, kv, _ := newTestController(exchanger)

		require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))

		assert.False(t, controller.IsLoggedIn())
		assert.Equal(t, "Unauthorized access. Please contact support.", controller.LoginError())
		assert.NotContains(t, controller.LoginError(), "invalid_grant")
		assert.False(t, kv.has("credential"))
		assert.Equal(t, RouteRoot, controller.CurrentRoute())
	})

	t.Run("a second exchange while one is in flight is rejected", func(t *testing.T) {
		exchanger := &fakeExchanger{credential: "app-1", block: make(chan struct{})}
		controller, _, _ := newTestController(exchanger)

		done := make(chan error, 1)
		go func() {
			done <- controller.HandleProviderCallback(ctx, "tok-1")
		}()
		require.Eventually(t, func() bool {
			exchanger.mu.Lock()
			defer exchanger.mu.Unlock()
			return exchanger.calls == 1
		}, time.Second, 5*time.Millisecond)

		assert.ErrorIs(t, controller.HandleProviderCallback(ctx, "tok-2"), ErrExchangeInFlight)

		close(exchanger.block)
		require.NoError(t, <-done)
		assert.True(t, controller.IsLoggedIn())
	})

	t.Run("a completion after teardown is discarded", func(t *testing.T) {
		exchanger := &fakeExchanger{credential: "app-1", block: make(chan struct{})}
		controller, kv, _ := newTestController(exchanger)

		done := make(chan error, 1)
		go func() {
			done <- controller.HandleProviderCallback(ctx, "tok-1")
		}()
		require.Eventually(t, func() bool {
			exchanger.mu.Lock()
			defer exchanger.mu.Unlock()
			return exchanger.calls == 1
		}, time.Second, 5*time.Millisecond)

		controller.Close()
		close(exchanger.block)
		require.NoError(t, <-done)

		assert.False(t, controller.IsLoggedIn())
		assert.False(t, kv.has("credential"))
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	exchanger := &fakeExchanger{credential: "app-1"}
	controller, kv, _ := newTestController(exchanger)
	require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))

	require.NoError(t, controller.Logout(ctx))

	assert.False(t, controller.IsLoggedIn())
	assert.False(t, controller.ShowOnboarding())
	assert.Equal(t, RouteRoot, controller.CurrentRoute())
	assert.False(t, kv.has("credential"))
	assert.False(t, kv.has("last_activity"))
	assert.False(t, kv.has("onboarding_shown"))
}

func TestCheckLiveness(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes the activity timestamp while not expired", func(t *testing.T) {
		exchanger := &fakeExchanger{credential: "app-1"}
		controller, kv, clk := newTestController(exchanger)
		require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))
		before := kv.data["last_activity"]

		clk.Advance(5 * time.Minute)
		require.NoError(t, controller.CheckLiveness(ctx))

		assert.True(t, controller.IsLoggedIn())
		after := kv.data["last_activity"]
		assert.NotEqual(t, before, after)
		millis, err := strconv.ParseInt(after, 10, 64)
		require.NoError(t, err)
		assert.Equal(t, clk.Now().UnixMilli(), millis)
	})

	t.Run("forces logout once the timeout is exceeded", func(t *testing.T) {
		exchanger := &fakeExchanger{credential: "app-1"}
		controller, kv, clk := newTestController(exchanger)
		require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))

		clk.Advance(15*time.Minute + time.Second)
		require.NoError(t, controller.CheckLiveness(ctx))

		assert.False(t, controller.IsLoggedIn())
		assert.Equal(t, RouteRoot, controller.CurrentRoute())
		assert.False(t, kv.has("credential"))
		assert.False(t, kv.has("last_activity"))
	})

	t.Run("forces logout when the persisted credential vanished", func(t *testing.T) {
		exchanger := &fakeExchanger{credential: "app-1"}
		controller, kv, _ := newTestController(exchanger)
		require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))

		require.NoError(t, kv.Delete(ctx, "credential"))
		require.NoError(t, controller.CheckLiveness(ctx))

		assert.False(t, controller.IsLoggedIn())
		assert.Equal(t, RouteRoot, controller.CurrentRoute())
	})
}

func TestNavigate(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the route while logged in", func(t *testing.T) {
		exchanger := &fakeExchanger{credential: "app-1"}
		controller, kv, _ := newTestController(exchanger)
		require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))

		require.NoError(t, controller.Navigate(ctx, "/verifications/aadhaar"))

		assert.Equal(t, "/verifications/aadhaar", controller.CurrentRoute())
		assert.Equal(t, "/verifications/aadhaar", kv.data["current_route"])
	})

	t.Run("overrides off-root navigation while logged out", func(t *testing.T) {
		controller, kv, _ := newTestController(&fakeExchanger{})

		require.NoError(t, controller.Navigate(ctx, RouteLanding))

		assert.Equal(t, RouteRoot, controller.CurrentRoute())
		assert.Equal(t, RouteRoot, kv.data["current_route"])
	})

	t.Run("overrides root navigation while logged in", func(t *testing.T) {
		exchanger := &fakeExchanger{credential: "app-1"}
		controller, _, _ := newTestController(exchanger)
		require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))

		require.NoError(t, controller.Navigate(ctx, RouteRoot))

		assert.Equal(t, RouteLanding, controller.CurrentRoute())
	})
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds a live session and restores its route", func(t *testing.T) {
		kv := newMemStore()
		clk := &fakeClock{now: time.UnixMilli(1700000000000)}
		require.NoError(t, kv.Set(ctx, "credential", "app-1"))
		require.NoError(t, kv.Set(ctx, "last_activity", strconv.FormatInt(clk.Now().Add(-time.Minute).UnixMilli(), 10)))
		require.NoError(t, kv.Set(ctx, "current_route", "/verifications/aadhaar"))

		controller := NewController(kv, clk, &fakeExchanger{}, 15*time.Minute)
		require.NoError(t, controller.Restore(ctx))

		assert.True(t, controller.IsLoggedIn())
		assert.Equal(t, "/verifications/aadhaar", controller.CurrentRoute())
		assert.Equal(t, clk.Now().UnixMilli(), mustParseInt(t, kv.data["last_activity"]))
	})

	t.Run("redirects a restored root route while logged in", func(t *testing.T) {
		kv := newMemStore()
		clk := &fakeClock{now: time.UnixMilli(1700000000000)}
		require.NoError(t, kv.Set(ctx, "credential", "app-1"))
		require.NoError(t, kv.Set(ctx, "last_activity", strconv.FormatInt(clk.Now().UnixMilli(), 10)))
		require.NoError(t, kv.Set(ctx, "current_route", RouteRoot))

		controller := NewController(kv, clk, &fakeExchanger{}, 15*time.Minute)
		require.NoError(t, controller.Restore(ctx))

		assert.Equal(t, RouteLanding, controller.CurrentRoute())
	})

	t.Run("terminates an expired session on startup", func(t *testing.T) {
		kv := newMemStore()
		clk := &fakeClock{now: time.UnixMilli(1700000000000)}
		require.NoError(t, kv.Set(ctx, "credential", "app-1"))
		require.NoError(t, kv.Set(ctx, "last_activity", strconv.FormatInt(clk.Now().Add(-time.Hour).UnixMilli(), 10)))
		require.NoError(t, kv.Set(ctx, "current_route", RouteLanding))

		controller := NewController(kv, clk, &fakeExchanger{}, 15*time.Minute)
		require.NoError(t, controller.Restore(ctx))

		assert.False(t, controller.IsLoggedIn())
		assert.Equal(t, RouteRoot, controller.CurrentRoute())
		assert.False(t, kv.has("credential"))
	})

	t.Run("starts logged out without a persisted credential", func(t *testing.T) {
		kv := newMemStore()
		require.NoError(t, kv.Set(ctx, "current_route", RouteLanding))

		controller := NewController(kv, &fakeClock{now: time.UnixMilli(1700000000000)}, &fakeExchanger{}, 15*time.Minute)
		require.NoError(t, controller.Restore(ctx))

		assert.False(t, controller.IsLoggedIn())
		assert.Equal(t, RouteRoot, controller.CurrentRoute())
	})
}

// Logged-in state and a persisted credential imply each other over arbitrary login/logout sequences
func TestCredentialPersistenceInvariant(t *testing.T) {
	ctx := context.Background()
	exchanger := &fakeExchanger{credential: "app-1"}
	controller, kv, _ := newTestController(exchanger)

	check := func() {
		assert.Equal(t, kv.has("credential"), controller.IsLoggedIn())
	}

	check()
	require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))
	check()
	require.NoError(t, controller.Logout(ctx))
	check()
	require.NoError(t, controller.Logout(ctx))
	check()
	require.NoError(t, controller.HandleProviderCallback(ctx, "tok-1"))
	check()
	require.NoError(t, controller.CheckLiveness(ctx))
	check()
}

func mustParseInt(t *testing.T, raw string) int64 {
	t.Helper()
	val, err := strconv.ParseInt(raw, 10, 64)
	require.NoError(t, err)
	return val
}
