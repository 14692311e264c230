package video

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onebitebitcoin/zentel/internal/fetch"
)

func TestVideoID(t *testing.T) {
	cases := []struct {
		url string
		id  string
		ok  bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?t=10&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/@somechannel", "", false},
		{"https://example.com/watch?v=tooShort", "", false},
	}
	for _, tc := range cases {
		id, ok := VideoID(tc.url)
		require.Equal(t, tc.ok, ok, tc.url)
		require.Equal(t, tc.id, id, tc.url)
	}
}

func TestPickTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u-en-asr", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u-ko-asr", LanguageCode: "ko", Kind: "asr"},
		{BaseURL: "u-en", LanguageCode: "en"},
		{BaseURL: "u-fr", LanguageCode: "fr"},
	}

	// Native auto track beats a manual English one.
	got := pickTrack(tracks, "ko")
	require.Equal(t, "u-ko-asr", got.BaseURL)

	// Without a native track, manual English wins over auto English.
	got = pickTrack(tracks, "de")
	require.Equal(t, "u-en", got.BaseURL)

	// Only auto tracks left: take any.
	onlyAuto := []captionTrack{{BaseURL: "u", LanguageCode: "pt", Kind: "asr"}}
	require.Equal(t, "u", pickTrack(onlyAuto, "ko").BaseURL)

	require.Nil(t, pickTrack(nil, "ko"))
}

func videoServer(t *testing.T, withTranscript bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"title":"A Talk About Go","author_name":"GopherCon","thumbnail_url":"https://img.example/t.jpg"}`)
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if !withTranscript {
			fmt.Fprint(w, "<html>no captions here</html>")
			return
		}
		fmt.Fprintf(w, `<html><script>var ytInitialPlayerResponse = {"captions":{"captionTracks":[{"baseUrl":"%s/timedtext?lang=ko","languageCode":"ko"},{"baseUrl":"%s/timedtext?lang=en","languageCode":"en","kind":"asr"}]},"other":1};</script></html>`,
			srv.URL, srv.URL)
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, `<?xml version="1.0"?><transcript><text start="0" dur="2">첫 번째 줄</text><text start="2" dur="3">두 번째 줄</text></transcript>`)
	})
	srv = httptest.NewServer(mux)
	return srv
}

func TestFetchWithTranscript(t *testing.T) {
	srv := videoServer(t, true)
	defer srv.Close()

	f := New(Config{Base: srv.URL, HTTPClient: srv.Client(), NativeLanguage: "ko"})
	res, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Contains(t, res.Content, "첫 번째 줄 두 번째 줄")
	require.Contains(t, res.Content, "A Talk About Go")
	require.Equal(t, "ko", res.Language)
	require.Equal(t, "A Talk About Go", res.Title)
	require.Equal(t, "https://img.example/t.jpg", res.Image)
}

func TestFetchMetadataOnlyPlaceholder(t *testing.T) {
	srv := videoServer(t, false)
	defer srv.Close()

	f := New(Config{Base: srv.URL, HTTPClient: srv.Client()})
	res, err := f.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "[no transcript] A Talk About Go", res.Content)
	require.Equal(t, "A Talk About Go", res.Title)
}

func TestFetchEverythingDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Base: srv.URL, HTTPClient: srv.Client()})
	res, err := f.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.ErrorIs(t, err, fetch.ErrUnsupportedHost)
	require.False(t, res.Success)
	require.Equal(t, fetch.ManualPasteMessage, res.Err)
}

func TestFetchUnrecognizedURL(t *testing.T) {
	f := New(Config{})
	res, err := f.Fetch(context.Background(), "https://www.youtube.com/@channel")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, fetch.ManualPasteMessage, res.Err)
}
