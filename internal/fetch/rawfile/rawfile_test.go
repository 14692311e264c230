package rawfile

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRawURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{
			"https://github.com/golang/go/blob/master/README.md",
			"https://raw.githubusercontent.com/golang/go/master/README.md",
			true,
		},
		{
			"http://github.com/o/r/blob/v1.2.3/deep/path/file.go",
			"https://raw.githubusercontent.com/o/r/v1.2.3/deep/path/file.go",
			true,
		},
		{"https://github.com/golang/go", "", false},
		{"https://github.com/golang/go/tree/master/src", "", false},
		{"https://example.com/blob/main/x", "", false},
	}
	for _, tc := range cases {
		got, ok := RawURL(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestFetchDownloadsRawContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/golang/go/master/README.md", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "# The Go Programming Language\n\nGo is an open source language.")
	})
	mux.HandleFunc("/golang/go/blob/master/README.md", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>go/README.md at master</title><meta property="og:image" content="https://img.example/repo.png"></head><body><article><p>readme viewer</p></article></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{HTTPClient: srv.Client(), RawBase: srv.URL, ViewerBase: srv.URL})
	res, err := f.Fetch(context.Background(), "https://github.com/golang/go/blob/master/README.md")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Contains(t, res.Content, "open source language")
	require.Contains(t, res.Title, "README.md")
}

func TestFetchRawMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(Config{HTTPClient: srv.Client(), RawBase: srv.URL})
	res, err := f.Fetch(context.Background(), "https://github.com/o/r/blob/main/gone.txt")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Err, "could not be downloaded")
}

func TestFetchNonBlobURL(t *testing.T) {
	f := New(Config{})
	res, err := f.Fetch(context.Background(), "https://github.com/golang/go")
	require.NoError(t, err)
	require.False(t, res.Success)
}
