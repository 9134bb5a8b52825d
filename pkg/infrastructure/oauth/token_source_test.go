package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakline/server/pkg/infrastructure/database"
	"github.com/peakline/server/pkg/testing/mocks"
	"github.com/peakline/server/pkg/types"
)

func fixedNow() time.Time { return time.Unix(10_000, 0) }

func newTestSource(db *mocks.MockDatabase, tokenURL string) *CredentialSource {
	s := NewCredentialSource(db, &mocks.MockSecretStore{}, "user-1")
	s.now = fixedNow
	s.HTTPClient = &http.Client{
		Transport: rewriteTransport{target: tokenURL},
	}
	return s
}

// rewriteTransport redirects all requests to the test server.
type rewriteTransport struct {
	target string
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	nr := req.Clone(req.Context())
	u := *req.URL
	nr.URL = &u
	nr.URL.Scheme = "http"
	nr.URL.Host = t.target
	return http.DefaultTransport.RoundTrip(nr)
}

func TestTokenReturnsStoredCredentialWhenFresh(t *testing.T) {
	stored := &types.AthleteCredential{
		UserID:       "user-1",
		AthleteID:    42,
		AccessToken:  "fresh-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    fixedNow().Add(time.Hour).Unix(),
	}
	db := &mocks.MockDatabase{
		GetCredentialFunc: func(ctx context.Context, userID string) (*types.AthleteCredential, error) {
			return stored, nil
		},
		SwapCredentialFunc: func(ctx context.Context, cred *types.AthleteCredential, prev int64) error {
			t.Fatal("fresh credential must not be refreshed")
			return nil
		},
	}

	s := newTestSource(db, "never-dialed")
	cred, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", cred.AccessToken)
}

func TestTokenRefreshesExpiredCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-old", r.Form.Get("refresh_token"))
		fmt.Fprintf(w, `{"access_token":"new-token","refresh_token":"refresh-new","expires_at":%d}`,
			fixedNow().Add(6*time.Hour).Unix())
	}))
	defer srv.Close()

	var swapped *types.AthleteCredential
	db := &mocks.MockDatabase{
		GetCredentialFunc: func(ctx context.Context, userID string) (*types.AthleteCredential, error) {
			return &types.AthleteCredential{
				UserID:       "user-1",
				AthleteID:    42,
				AccessToken:  "stale-token",
				RefreshToken: "refresh-old",
				ExpiresAt:    fixedNow().Add(-time.Hour).Unix(),
			}, nil
		},
		SwapCredentialFunc: func(ctx context.Context, cred *types.AthleteCredential, prev int64) error {
			assert.Equal(t, fixedNow().Add(-time.Hour).Unix(), prev)
			swapped = cred
			return nil
		},
	}

	s := newTestSource(db, srv.Listener.Addr().String())
	cred, err := s.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "new-token", cred.AccessToken)
	assert.Equal(t, "refresh-new", cred.RefreshToken)
	assert.Equal(t, int64(42), cred.AthleteID)
	require.NotNil(t, swapped, "refreshed tokens must be persisted")
	assert.Equal(t, "new-token", swapped.AccessToken)
}

func TestRefreshKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"new-token","expires_in":21600}`)
	}))
	defer srv.Close()

	db := &mocks.MockDatabase{
		GetCredentialFunc: func(ctx context.Context, userID string) (*types.AthleteCredential, error) {
			return &types.AthleteCredential{
				UserID:       "user-1",
				AccessToken:  "stale-token",
				RefreshToken: "refresh-old",
				ExpiresAt:    fixedNow().Add(-time.Hour).Unix(),
			}, nil
		},
	}

	s := newTestSource(db, srv.Listener.Addr().String())
	cred, err := s.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "refresh-old", cred.RefreshToken)
	assert.Equal(t, fixedNow().Add(21600*time.Second).Unix(), cred.ExpiresAt)
}

func TestRefreshRejectedTokenIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad Request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	db := &mocks.MockDatabase{
		GetCredentialFunc: func(ctx context.Context, userID string) (*types.AthleteCredential, error) {
			return &types.AthleteCredential{
				UserID:       "user-1",
				AccessToken:  "stale-token",
				RefreshToken: "revoked",
				ExpiresAt:    fixedNow().Add(-time.Hour).Unix(),
			}, nil
		},
	}

	s := newTestSource(db, srv.Listener.Addr().String())
	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestRefreshLosesRaceUsesWinner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"loser-token","refresh_token":"loser-refresh","expires_in":21600}`)
	}))
	defer srv.Close()

	var mu sync.Mutex
	reads := 0
	winner := &types.AthleteCredential{
		UserID:       "user-1",
		AccessToken:  "winner-token",
		RefreshToken: "winner-refresh",
		ExpiresAt:    fixedNow().Add(6 * time.Hour).Unix(),
	}
	db := &mocks.MockDatabase{
		GetCredentialFunc: func(ctx context.Context, userID string) (*types.AthleteCredential, error) {
			mu.Lock()
			defer mu.Unlock()
			reads++
			if reads == 1 {
				return &types.AthleteCredential{
					UserID:       "user-1",
					AccessToken:  "stale-token",
					RefreshToken: "refresh-old",
					ExpiresAt:    fixedNow().Add(-time.Hour).Unix(),
				}, nil
			}
			return winner, nil
		},
		SwapCredentialFunc: func(ctx context.Context, cred *types.AthleteCredential, prev int64) error {
			return database.ErrSuperseded
		},
	}

	s := newTestSource(db, srv.Listener.Addr().String())
	cred, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "winner-token", cred.AccessToken)
}

func TestTokenRejectsUnlinkedUser(t *testing.T) {
	db := &mocks.MockDatabase{
		GetCredentialFunc: func(ctx context.Context, userID string) (*types.AthleteCredential, error) {
			return &types.AthleteCredential{UserID: "user-1"}, nil
		},
	}

	s := newTestSource(db, "never-dialed")
	_, err := s.Token(context.Background())
	assert.ErrorContains(t, err, "no linked athlete")
}
