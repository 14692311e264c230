package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/onebitebitcoin/zentel/internal/metrics"
)

const completionBody = `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`

func TestClientCompleteCountsProviderCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody)
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL + "/", Metrics: m})

	out, err := c.Complete(context.Background(), Request{System: "echo", User: "hi"})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls))
}

func TestClientCompleteCountsEveryRetry(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody)
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL + "/", Metrics: m})

	out, err := c.Complete(context.Background(), Request{System: "echo", User: "hi"})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 2.0, testutil.ToFloat64(m.LLMCalls))
}
