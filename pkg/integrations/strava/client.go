package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	httputil "github.com/peakline/server/pkg/infrastructure/http"
	"github.com/peakline/server/pkg/ratelimit"
	"github.com/peakline/server/pkg/types"
)

const (
	baseURL = "https://www.strava.com/api/v3"

	// activityPageSize is the per_page used when listing activities. A page
	// shorter than this terminates pagination.
	activityPageSize = 50
)

// streamKeys are the metric series requested alongside the time axis.
var streamKeys = []string{"time", "heartrate", "watts", "velocity_smooth"}

// Client is an API client for Strava. Every request waits on the shared rate
// limiter before dialing, so the application-wide call budget holds no matter
// how many workers hold a Client.
type Client struct {
	limiter ratelimit.Limiter
	client  *http.Client

	// base is overridable for tests.
	base string
}

// NewClient creates a Strava API client. The http.Client is expected to carry
// an authenticating transport; the limiter gates every outbound call.
func NewClient(httpClient *http.Client, limiter ratelimit.Limiter) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if limiter == nil {
		// A client must never run ungated; smoothed pacing is the safe default.
		limiter = ratelimit.NewSmoothed(ratelimit.StravaBudget)
	}
	return &Client{
		limiter: limiter,
		client:  httpClient,
		base:    baseURL,
	}
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(u string) { c.base = u }

// summaryActivity is the provider's activity summary shape, reduced to the
// fields the pipeline keeps.
type summaryActivity struct {
	ID      int64 `json:"id"`
	Athlete struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
	StartDateLocal string   `json:"start_date_local"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Distance       float64  `json:"distance"`
	ElapsedTime    int64    `json:"elapsed_time"`
	Trainer        bool     `json:"trainer"`
	SufferScore    *float64 `json:"suffer_score"`
}

func (a *summaryActivity) toRaw(athleteID int64) *types.RawActivity {
	id := a.Athlete.ID
	if id == 0 {
		id = athleteID
	}
	return &types.RawActivity{
		ActivityID:     a.ID,
		AthleteID:      id,
		StartDateLocal: a.StartDateLocal,
		Name:           a.Name,
		Type:           a.Type,
		Distance:       a.Distance,
		ElapsedTime:    a.ElapsedTime,
		Trainer:        a.Trainer,
		SufferScore:    a.SufferScore,
	}
}

// doRequest waits for a rate-limit slot, then performs the request. A 429
// means the provider-side window is tighter than ours; the call goes back
// through the limiter and retries until it lands or the context ends. Other
// non-2xx responses are turned into typed errors carrying the response body.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	for {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if wait := retryAfter(resp); wait > 0 {
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, err
				}
			}
			continue
		}

		if err := httputil.ParseErrorResponse(resp); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp, nil
	}
}

// retryAfter reads the throttle hint from a 429 response, zero when absent.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ListActivities returns all activity summaries whose start time falls inside
// (after, before), walking pages until the provider returns a short page.
func (c *Client) ListActivities(ctx context.Context, athleteID int64, after, before time.Time) ([]*types.RawActivity, error) {
	var all []*types.RawActivity

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(activityPageSize))
		query.Set("page", strconv.Itoa(page))
		if !after.IsZero() {
			query.Set("after", strconv.FormatInt(after.Unix(), 10))
		}
		if !before.IsZero() {
			query.Set("before", strconv.FormatInt(before.Unix(), 10))
		}

		resp, err := c.doRequest(ctx, "/athlete/activities", query)
		if err != nil {
			return nil, fmt.Errorf("list activities page %d: %w", page, err)
		}

		var batch []summaryActivity
		err = json.NewDecoder(resp.Body).Decode(&batch)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode activities page %d: %w", page, err)
		}

		for i := range batch {
			all = append(all, batch[i].toRaw(athleteID))
		}
		if len(batch) < activityPageSize {
			return all, nil
		}
	}
}

// GetStreams fetches the sample series for one activity. Activities without
// recorded streams (manual entries, provider 404s) return nil with no error;
// the caller simply has nothing to analyze.
func (c *Client) GetStreams(ctx context.Context, activityID int64) (types.StreamSet, error) {
	query := url.Values{}
	for _, k := range streamKeys {
		query.Add("keys", k)
	}
	query.Set("key_by_type", "true")

	resp, err := c.doRequest(ctx, fmt.Sprintf("/activities/%d/streams", activityID), query)
	if err != nil {
		var httpErr *httputil.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get streams for activity %d: %w", activityID, err)
	}
	defer resp.Body.Close()

	var keyed map[string]struct {
		Data []float64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&keyed); err != nil {
		return nil, fmt.Errorf("decode streams for activity %d: %w", activityID, err)
	}
	if len(keyed) == 0 {
		return nil, nil
	}

	set := make(types.StreamSet, len(keyed))
	for name, s := range keyed {
		set[name] = s.Data
	}
	return set, nil
}
