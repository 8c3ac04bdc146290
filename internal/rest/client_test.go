package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/openbasket/storefront-client/internal/session"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
	"github.com/openbasket/storefront-client/pkg/logger"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := session.NewStore()
	client, err := NewClient(Options{
		BaseURL:     server.URL,
		Fingerprint: "fp-test",
		Session:     store,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return client, store
}

func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeAuthError(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "auth error: " + reason})
}

func TestDoAttachesIdentityAndBearerHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	router := chi.NewRouter()
	router.Get("/api/cart/items", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeSuccess(w, map[string]any{"ok": true})
	})

	client, store := newTestClient(t, router)
	require.NoError(t, store.SetTokens("access-1", "refresh-1"))

	require.NoError(t, client.Do(context.Background(), Request{Method: "GET", Path: "/api/cart/items"}, nil))

	require.Equal(t, "Bearer access-1", got.Get("Authorization"))
	require.Equal(t, "web", got.Get(headerPlatform))
	require.Equal(t, "fp-test", got.Get(headerFingerprint))
	require.NotEmpty(t, got.Get("User-Agent"))
	require.NotEmpty(t, got.Get(headerRequestID))
}

func TestSingleFlightRefreshSharedAcrossConcurrentRequests(t *testing.T) {
	t.Parallel()

	const concurrent = 8

	var refreshCalls, protectedCalls int64
	var arrived int64
	allArrived := make(chan struct{})

	router := chi.NewRouter()
	router.Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&protectedCalls, 1)
		if r.Header.Get("Authorization") == "Bearer new-access" {
			writeSuccess(w, map[string]any{"ok": true})
			return
		}
		// Hold every first-round request until all are in flight so the
		// resulting 401s race into the interceptor together.
		if atomic.AddInt64(&arrived, 1) == concurrent {
			close(allArrived)
		}
		<-allArrived
		writeAuthError(w, "token expired")
	})
	router.Post(PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		// Keep the refresh in flight long enough for every 401 to join it.
		time.Sleep(200 * time.Millisecond)
		require.Empty(t, r.Header.Get("Authorization"))
		require.Equal(t, "fp-test", r.Header.Get(headerFingerprint))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refresh-1", body["refresh_token"])

		writeSuccess(w, map[string]any{
			"access_token":  "new-access",
			"refresh_token": "refresh-2",
		})
	})

	client, store := newTestClient(t, router)
	require.NoError(t, store.SetTokens("stale-access", "refresh-1"))

	var wg sync.WaitGroup
	errs := make([]error, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.Do(context.Background(), Request{Method: "GET", Path: "/api/protected"}, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "request %d", i)
	}
	require.Equal(t, int64(1), atomic.LoadInt64(&refreshCalls), "exactly one refresh call")
	require.Equal(t, int64(2*concurrent), atomic.LoadInt64(&protectedCalls), "each request retried exactly once")
	require.Equal(t, "new-access", store.AccessToken())
	require.Equal(t, "refresh-2", store.RefreshToken())
}

func TestNoRetryLoopWhenRetryFailsAgain(t *testing.T) {
	t.Parallel()

	var refreshCalls, protectedCalls int64
	router := chi.NewRouter()
	router.Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&protectedCalls, 1)
		writeAuthError(w, "token expired")
	})
	router.Post(PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		writeSuccess(w, map[string]any{"access_token": "new-access"})
	})

	client, store := newTestClient(t, router)
	require.NoError(t, store.SetTokens("stale-access", "refresh-1"))

	err := client.Do(context.Background(), Request{Method: "GET", Path: "/api/protected"}, nil)
	require.Error(t, err)
	require.Equal(t, int64(2), atomic.LoadInt64(&protectedCalls), "one retry, then give up")
	require.Equal(t, int64(1), atomic.LoadInt64(&refreshCalls))
}

func TestRefreshEndpointFailureNeverTriggersAnotherRefresh(t *testing.T) {
	t.Parallel()

	var refreshCalls int64
	router := chi.NewRouter()
	router.Post(PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		writeAuthError(w, "token expired")
	})

	client, store := newTestClient(t, router)
	require.NoError(t, store.SetTokens("stale-access", "refresh-1"))

	err := client.Do(context.Background(), Request{Method: "POST", Path: PathRefresh, SkipAuth: true}, nil)
	require.Error(t, err)
	require.Equal(t, int64(1), atomic.LoadInt64(&refreshCalls))
	require.Empty(t, store.AccessToken(), "failed refresh clears the session")
}

func TestFatalReasonsForceClearWithoutRetry(t *testing.T) {
	t.Parallel()

	for reason := range fatalAuthReasons {
		reason := reason
		t.Run(reason, func(t *testing.T) {
			t.Parallel()

			var refreshCalls int64
			router := chi.NewRouter()
			router.Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
				writeAuthError(w, reason)
			})
			router.Post(PathRefresh, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt64(&refreshCalls, 1)
				writeSuccess(w, map[string]any{"access_token": "new-access"})
			})

			client, store := newTestClient(t, router)
			require.NoError(t, store.SetTokens("access-1", "refresh-1"))
			require.NoError(t, store.SetUser(session.UserProfile{ID: "u1"}))

			err := client.Do(context.Background(), Request{Method: "GET", Path: "/api/protected"}, nil)
			require.Error(t, err)
			require.Zero(t, atomic.LoadInt64(&refreshCalls), "fatal reasons must not refresh")

			snap := store.Snapshot()
			require.Empty(t, snap.AccessToken)
			require.Empty(t, snap.RefreshToken)
			require.Nil(t, snap.User)
		})
	}
}

func TestFatalReasonOnRetryForceClearsNewTokens(t *testing.T) {
	t.Parallel()

	var refreshCalls, protectedCalls int64
	router := chi.NewRouter()
	router.Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&protectedCalls, 1) == 1 {
			writeAuthError(w, "token expired")
			return
		}
		writeAuthError(w, "user banned")
	})
	router.Post(PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		writeSuccess(w, map[string]any{
			"access_token":  "new-access",
			"refresh_token": "refresh-2",
		})
	})

	client, store := newTestClient(t, router)
	require.NoError(t, store.SetTokens("stale-access", "refresh-1"))
	require.NoError(t, store.SetUser(session.UserProfile{ID: "u1"}))

	err := client.Do(context.Background(), Request{Method: "GET", Path: "/api/protected"}, nil)
	require.Error(t, err)
	require.Equal(t, int64(2), atomic.LoadInt64(&protectedCalls), "one retry, then give up")
	require.Equal(t, int64(1), atomic.LoadInt64(&refreshCalls))

	snap := store.Snapshot()
	require.Empty(t, snap.AccessToken, "fatal reason on the retried request must force-clear the session")
	require.Empty(t, snap.RefreshToken)
	require.Nil(t, snap.User)
}

func TestLoggingOutSuppressesRecovery(t *testing.T) {
	t.Parallel()

	var refreshCalls int64
	router := chi.NewRouter()
	router.Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		writeAuthError(w, "token expired")
	})
	router.Post(PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		writeSuccess(w, map[string]any{"access_token": "new-access"})
	})

	client, store := newTestClient(t, router)
	require.NoError(t, store.SetTokens("access-1", "refresh-1"))
	store.BeginLogout()

	err := client.Do(context.Background(), Request{Method: "GET", Path: "/api/protected"}, nil)
	require.Error(t, err)
	require.Zero(t, atomic.LoadInt64(&refreshCalls))
}

func TestRefreshFailurePropagatesRefreshError(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		writeAuthError(w, "token expired")
	})
	router.Post(PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "refresh token revoked"})
	})

	client, store := newTestClient(t, router)
	require.NoError(t, store.SetTokens("access-1", "refresh-1"))

	err := client.Do(context.Background(), Request{Method: "GET", Path: "/api/protected"}, nil)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeSessionExpired, typed.Code())
	require.Empty(t, store.AccessToken())
}

func TestRefreshMergesPartialUserPatch(t *testing.T) {
	t.Parallel()

	name := "Renamed"
	router := chi.NewRouter()
	calls := int64(0)
	router.Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			writeAuthError(w, "token invalid")
			return
		}
		writeSuccess(w, nil)
	})
	router.Post(PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, map[string]any{
			"access_token": "new-access",
			"user":         map[string]string{"name": name},
		})
	})

	client, store := newTestClient(t, router)
	require.NoError(t, store.SetTokens("access-1", "refresh-1"))
	require.NoError(t, store.SetUser(session.UserProfile{ID: "u1", Name: "Old", Email: "a@x.test"}))

	require.NoError(t, client.Do(context.Background(), Request{Method: "GET", Path: "/api/protected"}, nil))

	user := store.User()
	require.Equal(t, "u1", user.ID)
	require.Equal(t, "Renamed", user.Name)
	require.Equal(t, "a@x.test", user.Email)
	require.Equal(t, "refresh-1", store.RefreshToken(), "refresh token kept when response omits it")
}
