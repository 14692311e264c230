package source

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want Class
	}{
		{"twitter status", "https://twitter.com/jack/status/20", SocialPost},
		{"x status", "https://x.com/i/status/1234567890", SocialPost},
		{"mobile twitter", "https://mobile.twitter.com/jack/status/20", SocialPost},
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Video},
		{"youtu.be short", "https://youtu.be/dQw4w9WgXcQ", Video},
		{"mobile youtube", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", Video},
		{"github blob", "https://github.com/golang/go/blob/master/README.md", RawFile},
		{"github repo root", "https://github.com/golang/go", GenericPage},
		{"news article", "https://example.com/articles/2024/some-story", GenericPage},
		{"naver blog", "https://blog.naver.com/someone/223000000000", GenericPage},
		{"empty", "", GenericPage},
		{"garbage", "::not a url::", GenericPage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.url))
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	url := "https://x.com/someone/status/99"
	first := Classify(url)
	for range 10 {
		require.Equal(t, first, Classify(url))
	}
}

func TestRequiresPlatformAPI(t *testing.T) {
	require.True(t, RequiresPlatformAPI("https://youtu.be/abc123DEF45"))
	require.False(t, RequiresPlatformAPI("https://x.com/i/status/1"))
	require.False(t, RequiresPlatformAPI("https://example.com/post"))
}
