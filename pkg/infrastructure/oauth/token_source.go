package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	shared "github.com/peakline/server/pkg"
	"github.com/peakline/server/pkg/infrastructure/database"
	httputil "github.com/peakline/server/pkg/infrastructure/http"
	"github.com/peakline/server/pkg/types"
)

const stravaTokenURL = "https://www.strava.com/oauth/token"

// ErrCredentialInvalid means the stored refresh token was rejected by the
// provider. The athlete must re-authorize; retrying will not help, so the
// pipeline run for that athlete stops here.
var ErrCredentialInvalid = errors.New("stored refresh token rejected; athlete must re-authorize")

// TokenSource returns a valid credential.
// It is safe for concurrent use by multiple goroutines.
type TokenSource interface {
	Token(ctx context.Context) (*types.AthleteCredential, error)
	ForceRefresh(ctx context.Context) (*types.AthleteCredential, error)
}

// CredentialSource reads the athlete's stored credential and refreshes it
// against the provider when expired. The credential itself stays a pure data
// record; all I/O lives in this type so construction has no side effects.
type CredentialSource struct {
	db      shared.Database
	secrets shared.SecretStore
	userID  string

	// HTTPClient performs the token-endpoint exchange. Defaults to
	// http.DefaultClient; injectable for tests.
	HTTPClient *http.Client

	mu  sync.Mutex
	now func() time.Time
}

func NewCredentialSource(db shared.Database, secrets shared.SecretStore, userID string) *CredentialSource {
	return &CredentialSource{
		db:      db,
		secrets: secrets,
		userID:  userID,
		now:     time.Now,
	}
}

// Token returns the stored credential, refreshing it first if it is expired
// or expiring within the next minute.
func (s *CredentialSource) Token(ctx context.Context) (*types.AthleteCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.db.GetCredential(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("user %s has no linked athlete", s.userID)
	}

	if !cred.Expired(s.now()) {
		return cred, nil
	}
	return s.refresh(ctx, cred)
}

// ForceRefresh refreshes regardless of expiry. Used after an upstream 401,
// where the stored expiry claims the token is still good but the provider
// disagrees.
func (s *CredentialSource) ForceRefresh(ctx context.Context) (*types.AthleteCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.db.GetCredential(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("missing refresh token for user %s", s.userID)
	}
	return s.refresh(ctx, cred)
}

// refresh performs the token exchange and persists the result conditioned on
// the credential state it started from. If a concurrent worker refreshed
// first, this worker's exchange is discarded and the winner's tokens are used.
func (s *CredentialSource) refresh(ctx context.Context, prev *types.AthleteCredential) (*types.AthleteCredential, error) {
	clientID, err := s.secrets.GetSecret(ctx, "strava-client-id")
	if err != nil {
		return nil, err
	}
	clientSecret, err := s.secrets.GetSecret(ctx, "strava-client-secret")
	if err != nil {
		return nil, err
	}

	data := url.Values{}
	data.Set("client_id", clientID)
	data.Set("client_secret", clientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", prev.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, stravaTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("refresh for user %s: %w", s.userID, ErrCredentialInvalid)
	default:
		return nil, httputil.ParseErrorResponse(resp)
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		ExpiresAt    int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	expiresAt := result.ExpiresAt
	if expiresAt == 0 {
		expiresAt = s.now().Add(time.Duration(result.ExpiresIn) * time.Second).Unix()
	}

	next := *prev
	next.AccessToken = result.AccessToken
	next.ExpiresAt = expiresAt
	// The provider rotates refresh tokens; keep the old one only if the
	// response omitted a replacement.
	if result.RefreshToken != "" {
		next.RefreshToken = result.RefreshToken
	}

	err = s.db.SwapCredential(ctx, &next, prev.ExpiresAt)
	if errors.Is(err, database.ErrSuperseded) {
		// A concurrent refresh won the race. Its tokens are the live ones;
		// ours would resurrect a rotated-out refresh token.
		return s.db.GetCredential(ctx, s.userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist new tokens: %w", err)
	}

	return &next, nil
}
