package refdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecfantasy/league-engine/internal/model"
)

const getTeamsFixture = `{
  "data": {
    "teams": [
      {
        "id": "t-g2", "code": "G2", "name": "G2 Esports",
        "homeLeague": {"name": "LEC", "region": "EMEA"},
        "players": [
          {"id": "p-caps", "summonerName": "Caps", "firstName": "Rasmus", "lastName": "Winther", "image": "caps.png", "role": "mid"},
          {"id": "p-hans", "summonerName": "Hans Sama", "firstName": "Steven", "lastName": "Liv", "role": "bottom"},
          {"id": "p-coach", "summonerName": "Dylan", "role": "none"}
        ]
      },
      {
        "id": "t-c9", "code": "C9", "name": "Cloud9",
        "homeLeague": {"name": "LTA North"},
        "players": [
          {"id": "p-blaber", "name": "Blaber", "profilePhotoUrl": "blaber.png", "role": "jungle"}
        ]
      },
      {"id": "t-free", "code": "FA", "name": "Free Agents", "players": []}
    ]
  }
}`

func TestClient_Teams(t *testing.T) {
	var gotKey, gotLocale string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getTeams", r.URL.Path)
		gotKey = r.Header.Get("x-api-key")
		gotLocale = r.URL.Query().Get("hl")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(getTeamsFixture))
	}))
	defer srv.Close()

	teams, err := NewClient(srv.URL, "secret").Teams(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "en-US", gotLocale)
	require.Len(t, teams, 3)

	g2 := teams[0]
	assert.Equal(t, "LEC", g2.HomeLeague)
	require.Len(t, g2.Players, 2, "coach without a lane is dropped")
	assert.Equal(t, Player{
		ID:       "p-caps",
		Name:     "Caps",
		FullName: "Rasmus Winther",
		Role:     model.RoleMid,
		ImageURL: "caps.png",
	}, g2.Players[0])
	assert.Equal(t, model.RoleADC, g2.Players[1].Role, "bottom normalizes to adc")

	c9 := teams[1]
	require.Len(t, c9.Players, 1)
	assert.Equal(t, "Blaber", c9.Players[0].Name, "falls back to name")
	assert.Equal(t, "blaber.png", c9.Players[0].ImageURL, "falls back to profilePhotoUrl")
	assert.Empty(t, c9.Players[0].FullName)

	assert.Empty(t, teams[2].HomeLeague)
}

func TestClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad").Teams(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=403")
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").Teams(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewClient("", "k").baseURL)
}
