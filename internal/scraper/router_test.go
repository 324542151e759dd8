package scraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterRoute(t *testing.T) {
	r := NewRouter()
	cases := []struct {
		in      string
		store   StoreID
		wantURL string
	}{
		{"https://www.meta.com/experiences/beat-saber/2448060205267927/", StoreMeta, "https://www.meta.com/experiences/beat-saber/2448060205267927/"},
		{"https://www.meta.com/en-gb/experiences/beat-saber/2448060205267927/", StoreMeta, "https://www.meta.com/en-gb/experiences/beat-saber/2448060205267927/"},
		{"www.oculus.com/experiences/quest/2448060205267927/", StoreMeta, "https://www.oculus.com/experiences/quest/2448060205267927/"},
		{"https://store.facebook.com/quest/p/some-app", StoreMeta, "https://store.facebook.com/quest/p/some-app"},
		{"sidequestvr.com/app/1234/some-app", StoreSideQuest, "https://sidequestvr.com/app/1234/some-app"},
		{"https://sidequest.com/app/55", StoreSideQuest, "https://sidequest.com/app/55"},
		{"  store.steampowered.com/app/438100/VRChat/  ", StoreSteam, "https://store.steampowered.com/app/438100/VRChat/"},
		{"HTTP://store.steampowered.com/app/1", StoreSteam, "HTTP://store.steampowered.com/app/1"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			u, ex, err := r.Route(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.store, ex.ID)
			require.Equal(t, tc.wantURL, u)
			require.Len(t, r.Overlaps(tc.in), 1)
		})
	}
}

func TestNormalizeKeepsSchemes(t *testing.T) {
	require.Equal(t, "https://sidequestvr.com/app/1", Normalize(" sidequestvr.com/app/1 "))
	require.Equal(t, "ftp://x", Normalize("ftp://x"))
	require.Equal(t, "HTTP://store.steampowered.com/app/1", Normalize("HTTP://store.steampowered.com/app/1"))
	require.Equal(t, "", Normalize("   "))
}

func TestRouterUnsupported(t *testing.T) {
	r := NewRouter()
	for _, in := range []string{
		"https://example.com/app/1",
		"https://store.steampowered.com/bundle/232",
		"https://itch.io/games/vr",
		"ftp://store.steampowered.com/app/438100/",
		"",
	} {
		_, ex, err := r.Route(in)
		require.Nil(t, ex)

		var unsupported *UnsupportedURLError
		require.True(t, errors.As(err, &unsupported), in)
		require.Len(t, unsupported.Stores, 3)

		names := []string{}
		for _, s := range unsupported.Stores {
			require.NotEmpty(t, s.Example)
			names = append(names, s.Name)
		}
		require.ElementsMatch(t, []string{"Meta Quest Store", "SideQuest", "Steam"}, names)
		require.Contains(t, err.Error(), "SideQuest")
	}
}

func TestStoreExamplesRouteToThemselves(t *testing.T) {
	r := NewRouter()
	for _, s := range r.Stores() {
		_, ex, err := r.Route(s.Example)
		require.NoError(t, err)
		require.Equal(t, s.ID, ex.ID)
	}
}

func TestRouterFirstMatchWins(t *testing.T) {
	greedy := Steam()
	greedy.ID = "greedy"
	r := NewRouter(greedy, Steam())

	_, ex, err := r.Route("store.steampowered.com/app/1")
	require.NoError(t, err)
	require.Equal(t, StoreID("greedy"), ex.ID)
	require.Equal(t, []StoreID{"greedy", StoreSteam}, r.Overlaps("store.steampowered.com/app/1"))
}
