package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func fail(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

// fakeAPI accepts only the "fresh" access token on /api/menus and hands it out on refresh.
type fakeAPI struct {
	refreshes  atomic.Int32
	menuHits   atomic.Int32
	refreshErr bool
	alwaysDeny bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		time.Sleep(20 * time.Millisecond)
		if f.refreshErr {
			fail(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
			return
		}
		ok(w, map[string]any{"access_token": "fresh", "refresh_token": "refresh-2", "token_type": "Bearer", "expires_in": 900})
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		fail(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	})
	mux.HandleFunc("/api/menus", func(w http.ResponseWriter, r *http.Request) {
		f.menuHits.Add(1)
		if f.alwaysDeny || r.Header.Get("Authorization") != "Bearer fresh" {
			fail(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
			return
		}
		ok(w, []map[string]any{{"id": 1, "name": "dashboard", "label": "Dashboard", "menu_order": 0, "is_active": true}})
	})
	return mux
}

func newTestClient(t *testing.T, srv *httptest.Server, store TokenStore, opts ...Option) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:      srv.URL + "/api",
		Timeout:      2 * time.Second,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	}, store, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)

	_, err = New(Config{BaseURL: "not a url"}, nil)
	require.Error(t, err)
}

func TestRefreshOnceAndRetry(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := &MemoryTokenStore{}
	store.SetTokens(Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	c := newTestClient(t, srv, store)

	menus, err := c.Menus(context.Background(), MenuQuery{})
	require.NoError(t, err)
	require.Len(t, menus, 1)
	require.Equal(t, "dashboard", menus[0].Name)
	require.Equal(t, int32(1), api.refreshes.Load())
	require.Equal(t, int32(2), api.menuHits.Load())
	require.Equal(t, Tokens{AccessToken: "fresh", RefreshToken: "refresh-2"}, store.Tokens())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := &MemoryTokenStore{}
	store.SetTokens(Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	c := newTestClient(t, srv, store)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Menus(context.Background(), MenuQuery{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), api.refreshes.Load())
}

func TestFailedRefreshForcesLogout(t *testing.T) {
	api := &fakeAPI{refreshErr: true}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	var logouts atomic.Int32
	store := &MemoryTokenStore{}
	store.SetTokens(Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	c := newTestClient(t, srv, store, WithLogoutHandler(func() { logouts.Add(1) }))

	_, err := c.Menus(context.Background(), MenuQuery{})
	require.Error(t, err)
	require.True(t, IsKind(err, KindUnauthorized))
	require.True(t, store.Tokens().Empty())
	require.Equal(t, int32(1), logouts.Load())
	require.Equal(t, int32(1), api.menuHits.Load())
}

func TestSecondUnauthorizedForcesLogout(t *testing.T) {
	api := &fakeAPI{alwaysDeny: true}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	var logouts atomic.Int32
	store := &MemoryTokenStore{}
	store.SetTokens(Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	c := newTestClient(t, srv, store, WithLogoutHandler(func() { logouts.Add(1) }))

	_, err := c.Menus(context.Background(), MenuQuery{})
	require.True(t, IsKind(err, KindUnauthorized))
	require.Equal(t, int32(1), api.refreshes.Load())
	require.Equal(t, int32(2), api.menuHits.Load())
	require.Equal(t, int32(1), logouts.Load())
	require.True(t, store.Tokens().Empty())
}

func TestLoginFailureDoesNotRefresh(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	var logouts atomic.Int32
	c := newTestClient(t, srv, nil, WithLogoutHandler(func() { logouts.Add(1) }))

	_, err := c.Login(context.Background(), "alice", "wrong")
	require.True(t, IsKind(err, KindUnauthorized))
	require.Equal(t, "INVALID_CREDENTIALS", Code(err))
	require.Zero(t, api.refreshes.Load())
	require.Zero(t, logouts.Load())
}

func TestReadsRetryOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			fail(w, http.StatusServiceUnavailable, "UNAVAILABLE", "try again")
			return
		}
		ok(w, []any{})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.Roles(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(3), hits.Load())
}

func TestReadRetriesAreBounded(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fail(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "boom")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.Roles(context.Background())
	require.True(t, IsKind(err, KindServer))
	require.Equal(t, int32(3), hits.Load())
}

func TestWritesAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fail(w, http.StatusServiceUnavailable, "UNAVAILABLE", "try again")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.CreateMenu(context.Background(), MenuInput{Name: "x", Label: "X"})
	require.True(t, IsKind(err, KindServer))
	require.Equal(t, int32(1), hits.Load())
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusForbidden, KindForbidden},
		{http.StatusNotFound, KindNotFound},
		{http.StatusConflict, KindConflict},
		{http.StatusBadGateway, KindServer},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fail(w, tc.status, "SOME_CODE", "some message")
			}))
			defer srv.Close()

			c := newTestClient(t, srv, nil)
			_, err := c.DeleteMenu(context.Background(), 3, "reject")
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tc.kind, apiErr.Kind)
			require.Equal(t, tc.status, apiErr.Status)
			require.Equal(t, "SOME_CODE", apiErr.Code)
			require.Equal(t, "some message", apiErr.Message)
		})
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error": map[string]any{
				"code":    "VALIDATION_FAILED",
				"message": "Validation failed",
				"fields":  map[string]string{"name": "name is required", "menu_order": "menu order must be greater than or equal to 0"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.CreateMenu(context.Background(), MenuInput{Label: "Reports", MenuOrder: -1})

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, KindValidation, apiErr.Kind)
	require.Equal(t, "VALIDATION_FAILED", apiErr.Code)
	require.Equal(t, map[string]string{
		"name":       "name is required",
		"menu_order": "menu order must be greater than or equal to 0",
	}, apiErr.Fields)
}

func TestNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url + "/api", ReadRetries: -1, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.Roles(context.Background())
	require.True(t, IsKind(err, KindNetwork))
}

func TestBearerTokenOnEveryRequest(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		ok(w, map[string]any{})
	}))
	defer srv.Close()

	store := &MemoryTokenStore{}
	store.SetTokens(Tokens{AccessToken: "abc", RefreshToken: "def"})
	c := newTestClient(t, srv, store)

	_, err := c.Me(context.Background())
	require.NoError(t, err)
	_, err = c.SetRoleMenuAccess(context.Background(), 1, 2, true)
	require.NoError(t, err)

	require.Equal(t, []string{"Bearer abc", "Bearer abc"}, seen)
}

func TestReadCacheResetOnWrite(t *testing.T) {
	var reads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reads.Add(1)
			ok(w, []any{})
			return
		}
		ok(w, map[string]any{"id": 5, "role_name": "Finance"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/api", CacheTTL: time.Minute}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Roles(ctx)
	require.NoError(t, err)
	_, err = c.Roles(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), reads.Load())

	_, err = c.CreateRole(ctx, RoleInput{Name: "Finance"})
	require.NoError(t, err)

	_, err = c.Roles(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), reads.Load())
}

func TestQueryCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewQueryCache(0, time.Minute)
	cache.now = func() time.Time { return now }

	cache.Set("/roles", []byte(`[]`))
	value, hit := cache.Get("/roles")
	require.True(t, hit)
	require.Equal(t, []byte(`[]`), value)

	now = now.Add(time.Minute)
	_, hit = cache.Get("/roles")
	require.False(t, hit)

	var nilCache *QueryCache
	nilCache.Set("k", []byte("v"))
	_, hit = nilCache.Get("k")
	require.False(t, hit)
	nilCache.Reset()
}
