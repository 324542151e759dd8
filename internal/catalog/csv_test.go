package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"vrstore/pkg/models"
)

func TestReadCSVAliases(t *testing.T) {
	in := "\ufeffName,Publisher,Genre,Size,Images,Stars,Download Count,Store URL\n" +
		`Beat Saber,Beat Games,"Rhythm, Music",1572864,https://a/1.jpg | https://a/2.jpg,4.8,"1,200",https://store/bs` + "\n" +
		",no title,Games,,,,,\n" +
		"Painter,Studio X,Art Tools,,,,,\n"

	apps, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, apps, 2)

	want := models.App{
		Title:       "Beat Saber",
		Developer:   "Beat Games",
		Category:    "Games",
		FileSize:    1572864,
		Rating:      4.8,
		Downloads:   1200,
		SourceURL:   "https://store/bs",
		Screenshots: []models.Screenshot{{URL: "https://a/1.jpg"}, {URL: "https://a/2.jpg"}},
	}
	if diff := cmp.Diff(want, apps[0]); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
	// unknown genres are kept
	require.Equal(t, "Art Tools", apps[1].Category)
}

func TestReadCSVBadNumber(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("title,rating\nBeat Saber,five\n"))
	require.ErrorContains(t, err, "line 2")
	require.ErrorContains(t, err, "parse rating")
}

func TestReadCSVEmpty(t *testing.T) {
	apps, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, apps)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	app := beatSaber()
	app.ID = "bs"
	app.Downloads = 7
	app.SourceStore = "Meta Quest Store"
	app.Screenshots = []models.Screenshot{{URL: "https://img.example.com/1.jpg"}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []models.App{app}))
	require.True(t, strings.HasPrefix(buf.String(), strings.Join(CSVColumns, ",")+"\n"))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, back, 1)
	if diff := cmp.Diff(app, back[0]); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"  Action ":          "Games",
		"Fitness; Sports":    "Fitness",
		"Social|Games":       "Social",
		"Education":          "Education",
		"Something Else":     "Something Else",
		",":                  "",
		"Productivity Tools": "Productivity Tools",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeCategory(in), in)
	}
}
