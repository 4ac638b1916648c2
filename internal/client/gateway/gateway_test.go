package gateway

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

	"github.com/anayy09/FinMate/internal/client/client"
	"github.com/anayy09/FinMate/internal/client/models"
	"github.com/anayy09/FinMate/internal/client/tokenstore"
	"github.com/anayy09/FinMate/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataPath = common.APIPrefix + "/transactions/"

// backend is a scripted server: dataPath accepts only the bearer token in
// valid, and the refresh endpoint answers via refreshFn.
type backend struct {
	valid      atomic.Value
	dataCalls  atomic.Int32
	unauth     atomic.Int32
	refreshes  atomic.Int32
	refreshFn  func(w http.ResponseWriter, r *http.Request)
	lastBodies chan string
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{lastBodies: make(chan string, 32)}
	b.valid.Store("fresh")
	b.refreshFn = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case client.PathRefresh:
			b.refreshes.Add(1)
			b.refreshFn(w, r)
		case dataPath:
			b.dataCalls.Add(1)
			raw, _ := io.ReadAll(r.Body)
			b.lastBodies <- string(raw)
			if r.Header.Get(common.AuthorizationHeaderName) != common.BearerPrefix+b.valid.Load().(string) {
				b.unauth.Add(1)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "token_not_valid", "detail": "Token is invalid or expired"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": []int{1, 2}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return b, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func seededStore(t *testing.T, access string) *tokenstore.Store {
	t.Helper()
	st := tokenstore.New(tokenstore.NewMemoryBackend())
	if access != "" {
		require.NoError(t, st.Set(context.Background(), &models.Credentials{
			Tokens:   models.TokenPair{AccessToken: access, RefreshToken: "refresh-1"},
			Identity: &models.Identity{ID: 1, Email: "ann@example.com"},
		}))
	}
	return st
}

func newGateway(t *testing.T, srv *httptest.Server, st *tokenstore.Store, opts ...Option) *Gateway {
	t.Helper()
	c, err := client.NewHTTPClient(srv.URL)
	require.NoError(t, err)
	return New(srv.URL, st, c, opts...)
}

type listing struct {
	Items []int `json:"items"`
}

func TestDo_ValidTokenPassesThrough(t *testing.T) {
	b, srv := newBackend(t)
	st := seededStore(t, "fresh")
	g := newGateway(t, srv, st)

	var out listing
	require.NoError(t, g.DoJSON(context.Background(), http.MethodGet, dataPath, nil, &out, nil))
	assert.Equal(t, []int{1, 2}, out.Items)
	assert.EqualValues(t, 0, b.refreshes.Load())
	assert.EqualValues(t, 1, b.dataCalls.Load())
}

func TestDo_RenewsAndReplays(t *testing.T) {
	b, srv := newBackend(t)
	st := seededStore(t, "stale")
	g := newGateway(t, srv, st)

	var out listing
	err := g.DoJSON(context.Background(), http.MethodPost, dataPath, map[string]int{"amount": 5}, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out.Items)
	assert.EqualValues(t, 1, b.refreshes.Load())
	assert.EqualValues(t, 2, b.dataCalls.Load())

	// Same body on both attempts.
	first, second := <-b.lastBodies, <-b.lastBodies
	assert.JSONEq(t, `{"amount":5}`, first)
	assert.Equal(t, first, second)

	creds, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", creds.Tokens.AccessToken)
	assert.Equal(t, "refresh-1", creds.Tokens.RefreshToken)
	assert.Equal(t, "ann@example.com", creds.Identity.Email)
}

func TestDo_ConcurrentFailuresShareOneRefresh(t *testing.T) {
	const n = 5
	b, srv := newBackend(t)
	st := seededStore(t, "stale")

	// Hold the refresh until every request has seen its 401.
	b.refreshFn = func(w http.ResponseWriter, r *http.Request) {
		deadline := time.Now().Add(2 * time.Second)
		for b.unauth.Load() < n && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
	}
	g := newGateway(t, srv, st)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out listing
			errs[i] = g.DoJSON(context.Background(), http.MethodGet, dataPath, nil, &out, nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, b.refreshes.Load())
	assert.EqualValues(t, 2*n, b.dataCalls.Load())
}

func TestDo_ConcurrentFailuresEndSessionOnce(t *testing.T) {
	const n = 5
	b, srv := newBackend(t)
	st := seededStore(t, "stale")
	b.refreshFn = func(w http.ResponseWriter, r *http.Request) {
		deadline := time.Now().Add(2 * time.Second)
		for b.unauth.Load() < n && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "token_not_valid"})
	}
	g := newGateway(t, srv, st)

	var ended atomic.Int32
	g.OnSessionEnded(func(_ context.Context, reason error) {
		ended.Add(1)
		assert.ErrorIs(t, reason, client.ErrRefreshTokenInvalid)
	})

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = g.DoJSON(context.Background(), http.MethodGet, dataPath, nil, nil, nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, client.ErrUnauthorized)
	}
	assert.EqualValues(t, 1, b.refreshes.Load())
	assert.EqualValues(t, 1, ended.Load())

	_, err := st.Get(context.Background())
	assert.ErrorIs(t, err, tokenstore.ErrAbsent)
}

func TestDo_SecondUnauthorizedIsFatal(t *testing.T) {
	b, srv := newBackend(t)
	b.valid.Store("never")
	st := seededStore(t, "stale")
	g := newGateway(t, srv, st)

	var ended atomic.Int32
	g.OnSessionEnded(func(context.Context, error) { ended.Add(1) })

	err := g.DoJSON(context.Background(), http.MethodGet, dataPath, nil, nil, nil)
	require.ErrorIs(t, err, client.ErrUnauthorized)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	assert.EqualValues(t, 1, b.refreshes.Load())
	assert.EqualValues(t, 2, b.dataCalls.Load())
	assert.EqualValues(t, 1, ended.Load())

	_, err = st.Get(context.Background())
	assert.ErrorIs(t, err, tokenstore.ErrAbsent)
}

func TestDo_RefreshTimeoutEndsSession(t *testing.T) {
	b, srv := newBackend(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	b.refreshFn = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}
	st := seededStore(t, "stale")
	g := newGateway(t, srv, st, WithRefreshTimeout(50*time.Millisecond))

	var reason error
	g.OnSessionEnded(func(_ context.Context, r error) { reason = r })

	start := time.Now()
	err := g.DoJSON(context.Background(), http.MethodGet, dataPath, nil, nil, nil)
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, reason, client.ErrRefreshTokenInvalid)

	_, err = st.Get(context.Background())
	assert.ErrorIs(t, err, tokenstore.ErrAbsent)
}

func TestDo_NoStoredSession(t *testing.T) {
	b, srv := newBackend(t)
	st := seededStore(t, "")
	g := newGateway(t, srv, st)

	var ended atomic.Int32
	g.OnSessionEnded(func(context.Context, error) { ended.Add(1) })

	err := g.DoJSON(context.Background(), http.MethodGet, dataPath, nil, nil, nil)
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.EqualValues(t, 0, b.refreshes.Load())
	assert.EqualValues(t, 1, b.dataCalls.Load())
	assert.EqualValues(t, 0, ended.Load())
}

func TestDo_NonAuthErrorsPassThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"amount": []string{"must be positive"}})
	}))
	t.Cleanup(srv.Close)
	st := seededStore(t, "fresh")
	g := newGateway(t, srv, st)

	err := g.DoJSON(context.Background(), http.MethodPost, dataPath, map[string]int{"amount": -1}, nil, nil)
	require.ErrorIs(t, err, client.ErrValidationFailed)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []string{"must be positive"}, apiErr.Fields["amount"])

	_, err = st.Get(context.Background())
	assert.NoError(t, err)
}

func TestDo_CallerCancelDoesNotAbortRefresh(t *testing.T) {
	b, srv := newBackend(t)
	started := make(chan struct{})
	proceed := make(chan struct{})
	b.refreshFn = func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-proceed
		writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
	}
	st := seededStore(t, "stale")
	g := newGateway(t, srv, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.DoJSON(ctx, http.MethodGet, dataPath, nil, nil, nil) }()

	<-started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	close(proceed)

	require.Eventually(t, func() bool {
		creds, err := st.Get(context.Background())
		return err == nil && creds.Tokens.AccessToken == "fresh"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDo_SignInDuringRefreshKeepsNewSession(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "old refresh succeeds", status: http.StatusOK},
		{name: "old refresh rejected", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, srv := newBackend(t)
			started := make(chan struct{})
			proceed := make(chan struct{})
			b.refreshFn = func(w http.ResponseWriter, r *http.Request) {
				close(started)
				<-proceed
				if tt.status == http.StatusOK {
					writeJSON(w, http.StatusOK, map[string]string{"access": "minted-from-refresh-1"})
					return
				}
				writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "token_not_valid", "detail": "Token is invalid or expired"})
			}
			b.valid.Store("access-2")
			st := seededStore(t, "stale")
			g := newGateway(t, srv, st)

			var ended atomic.Int32
			g.OnSessionEnded(func(context.Context, error) { ended.Add(1) })

			ctx := context.Background()
			done := make(chan error, 1)
			var out listing
			go func() { done <- g.DoJSON(ctx, http.MethodGet, dataPath, nil, &out, nil) }()

			<-started
			signedIn := &models.Credentials{
				Tokens:   models.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"},
				Identity: &models.Identity{ID: 1, Email: "ann@example.com"},
			}
			require.NoError(t, st.Set(ctx, signedIn))
			close(proceed)

			require.NoError(t, <-done, "the replay should use the newly signed-in session")
			assert.Equal(t, []int{1, 2}, out.Items)
			assert.EqualValues(t, 2, b.dataCalls.Load())
			assert.EqualValues(t, 1, b.refreshes.Load())
			assert.EqualValues(t, 0, ended.Load(), "the new session must not be reported as ended")

			got, err := st.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, signedIn.Tokens, got.Tokens)
		})
	}
}

func TestOnSessionEnded_Unsubscribe(t *testing.T) {
	b, srv := newBackend(t)
	b.refreshFn = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, nil)
	}
	st := seededStore(t, "stale")
	g := newGateway(t, srv, st)

	var kept, dropped atomic.Int32
	g.OnSessionEnded(func(context.Context, error) { kept.Add(1) })
	cancel := g.OnSessionEnded(func(context.Context, error) { dropped.Add(1) })
	cancel()

	_ = g.DoJSON(context.Background(), http.MethodGet, dataPath, nil, nil, nil)
	assert.EqualValues(t, 1, kept.Load())
	assert.EqualValues(t, 0, dropped.Load())
}
