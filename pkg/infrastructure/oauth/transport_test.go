package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakline/server/pkg/types"
)

type fakeSource struct {
	token         string
	refreshed     string
	refreshCalls  int
	tokenErr      error
	forceFailWith error
}

func (f *fakeSource) Token(ctx context.Context) (*types.AthleteCredential, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &types.AthleteCredential{AccessToken: f.token}, nil
}

func (f *fakeSource) ForceRefresh(ctx context.Context) (*types.AthleteCredential, error) {
	f.refreshCalls++
	if f.forceFailWith != nil {
		return nil, f.forceFailWith
	}
	return &types.AthleteCredential{AccessToken: f.refreshed}, nil
}

func TestTransportInjectsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := NewHTTPClient(&fakeSource{token: "tok-1"})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestTransportRetriesOnceAfter401(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	source := &fakeSource{token: "tok-stale", refreshed: "tok-2"}
	client := NewHTTPClient(source)
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, source.refreshCalls)
	assert.Equal(t, []string{"Bearer tok-stale", "Bearer tok-2"}, seen)
}

func TestTransportDoesNotLoopOnRepeated401(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	source := &fakeSource{token: "tok-1", refreshed: "tok-1"}
	client := NewHTTPClient(source)
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "second 401 is returned, not retried")
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, source.refreshCalls)
}

func TestTransportSurfacesRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	source := &fakeSource{token: "tok-1", forceFailWith: ErrCredentialInvalid}
	client := NewHTTPClient(source)
	_, err := client.Get(srv.URL)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestTransportSurfacesTokenFailure(t *testing.T) {
	client := NewHTTPClient(&fakeSource{tokenErr: errors.New("store down")})
	_, err := client.Get("http://never-dialed.invalid")
	assert.ErrorContains(t, err, "cannot get token")
}
