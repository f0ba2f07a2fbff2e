package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultBaseURL is the lolesports persisted gateway.
	DefaultBaseURL = "https://esports-api.lolesports.com/persisted/gw"

	defaultLocale = "en-US"
)

// Client fetches teams from the lolesports API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
}

// NewClient creates a lolesports API client. An empty baseURL selects
// DefaultBaseURL.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:   baseURL,
		apiKey:    apiKey,
		userAgent: "league-engine/1.0",
	}
}

// upstream payload shapes

type getTeamsResponse struct {
	Data struct {
		Teams []apiTeam `json:"teams"`
	} `json:"data"`
}

type apiTeam struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	HomeLeague *struct {
		Name   string `json:"name"`
		Region string `json:"region"`
	} `json:"homeLeague"`
	Players []apiPlayer `json:"players"`
}

type apiPlayer struct {
	ID              string `json:"id"`
	SummonerName    string `json:"summonerName"`
	Name            string `json:"name"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Image           string `json:"image"`
	ProfilePhotoURL string `json:"profilePhotoUrl"`
	Role            string `json:"role"`
}

// Teams fetches and normalizes every team the API knows about.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	q := url.Values{}
	q.Set("hl", defaultLocale)

	var resp getTeamsResponse
	if err := c.fetch(ctx, c.baseURL+"/getTeams?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return normalizeTeams(resp.Data.Teams), nil
}

func (c *Client) fetch(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lolesports API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
