package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizzcloud/wizzcloud-cli/tui"
)

// newTestClient builds a client backed by temp session and cache files.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	dir := t.TempDir()
	session := OpenSession(filepath.Join(dir, "session.json"))
	blobs, err := NewBlobCache(filepath.Join(dir, "cache"))
	require.NoError(t, err)

	doer, err := retry.NewClient()
	require.NoError(t, err)

	return NewClient(baseURL, doer, session, blobs, tui.NoopDisplayer{})
}

// writeRefreshTokens answers in the refresh endpoint's snake_case shape.
func writeRefreshTokens(w http.ResponseWriter, access, refresh string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

const testFileList = `[{"id":1,"userId":7,"name":"report.pdf","fileKey":"k1","size":2048}]`

func TestDo_NoStoredTokenSendsNoAuthorization(t *testing.T) {
	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, testFileList)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	files, err := client.ListFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "", gotAuth.Load())
}

func TestDo_RefreshAndReplayOn401(t *testing.T) {
	var listCalls, refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/content/bucket/list", func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, testFileList)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		assert.Equal(t, "Bearer refresh-1", r.Header.Get("Authorization"))
		writeRefreshTokens(w, "access-2", "refresh-2")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.session.SetCredential(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))

	files, err := client.ListFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "report.pdf", files[0].Name)

	assert.Equal(t, int32(1), refreshCalls.Load(), "expected exactly one refresh")
	assert.Equal(t, int32(2), listCalls.Load(), "expected original call plus one replay")

	access, _ := client.session.AccessToken()
	refresh, _ := client.session.RefreshToken()
	assert.Equal(t, "access-2", access)
	assert.Equal(t, "refresh-2", refresh)
}

func TestDo_SecondUnauthorizedIsTerminal(t *testing.T) {
	var listCalls, refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/content/bucket/list", func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeRefreshTokens(w, "access-2", "refresh-2")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.session.SetCredential(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))

	_, err := client.ListFiles(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, int32(1), refreshCalls.Load(), "a second 401 must not trigger another refresh")
	assert.Equal(t, int32(2), listCalls.Load())
}

func TestDo_RefreshRejectedEndsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/content/bucket/list", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.session.SetCredential(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))

	var ended atomic.Bool
	client.OnSessionEnd = func() { ended.Store(true) }

	_, err := client.ListFiles(context.Background())
	require.ErrorIs(t, err, ErrRefreshRejected)

	_, hasAccess := client.session.AccessToken()
	_, hasRefresh := client.session.RefreshToken()
	assert.False(t, hasAccess, "access token should be cleared")
	assert.False(t, hasRefresh, "refresh token should be cleared")
	assert.True(t, ended.Load(), "OnSessionEnd should fire")
}

func TestDo_MissingRefreshTokenFailsWithoutReplay(t *testing.T) {
	var listCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.session.SetCredential(Credential{AccessToken: "access-1"}))

	_, err := client.ListFiles(context.Background())
	require.ErrorIs(t, err, ErrRefreshUnavailable)
	assert.Equal(t, int32(1), listCalls.Load(), "no replay without a refresh token")
}

func TestRefreshCredential_SingleFlight(t *testing.T) {
	var refreshCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		assert.Equal(t, "Bearer refresh-1", r.Header.Get("Authorization"))
		time.Sleep(100 * time.Millisecond)
		writeRefreshTokens(w, "access-2", "refresh-2")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.session.SetCredential(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))

	const callers = 5
	creds := make([]Credential, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			creds[i], errs[i] = client.refreshCredential(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), refreshCalls.Load(),
		"concurrent callers must share one token exchange")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-2", creds[i].AccessToken)
		assert.Equal(t, "refresh-2", creds[i].RefreshToken)
	}
}

func TestRefreshCredential_RotatesSingleUseToken(t *testing.T) {
	var mu sync.Mutex
	valid := "refresh-1"
	next := 2

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		access := fmt.Sprintf("access-%d", next)
		valid = fmt.Sprintf("refresh-%d", next)
		next++
		writeRefreshTokens(w, access, valid)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.session.SetCredential(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))

	cred, err := client.refreshCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", cred.RefreshToken)

	// The rotated token works for the next exchange.
	cred, err = client.refreshCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-3", cred.RefreshToken)

	// Reusing a consumed token is rejected and ends the session.
	require.NoError(t, client.session.SetCredential(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))
	_, err = client.refreshCredential(context.Background())
	require.ErrorIs(t, err, ErrRefreshRejected)
	_, hasRefresh := client.session.RefreshToken()
	assert.False(t, hasRefresh)
}

func TestDoJSON_RemoteErrorSurfacedVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "no such bucket")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.ListFiles(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "no such bucket", apiErr.Body)
}
