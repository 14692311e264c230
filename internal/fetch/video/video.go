// Package video fetches video metadata and transcripts. Video hosts have no
// browser fallback: when neither the oEmbed endpoint nor a transcript can be
// read, the user is asked to paste the content instead.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/fetch"
)

// DefaultBase is the public video host root.
const DefaultBase = "https://www.youtube.com"

const (
	metadataTimeout   = 10 * time.Second
	transcriptTimeout = 15 * time.Second
	noTranscriptTag   = "[no transcript]"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([\w-]{11})`),
	regexp.MustCompile(`youtu\.be/([\w-]{11})`),
	regexp.MustCompile(`/embed/([\w-]{11})`),
	regexp.MustCompile(`/v/([\w-]{11})`),
	regexp.MustCompile(`/shorts/([\w-]{11})`),
}

// VideoID extracts the 11-character video ID from any supported URL shape.
func VideoID(rawURL string) (string, bool) {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Config wires the video fetcher.
type Config struct {
	Base           string
	HTTPClient     *http.Client
	NativeLanguage string
	Logger         *zap.Logger
}

// Fetcher implements fetch.Fetcher for video URLs.
type Fetcher struct {
	base       string
	client     *http.Client
	nativeLang string
	logger     *zap.Logger
}

// New builds the fetcher. NativeLanguage is the user's language, tried first
// when picking a transcript track.
func New(cfg Config) *Fetcher {
	if cfg.Base == "" {
		cfg.Base = DefaultBase
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.NativeLanguage == "" {
		cfg.NativeLanguage = "ko"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		base:       cfg.Base,
		client:     cfg.HTTPClient,
		nativeLang: cfg.NativeLanguage,
		logger:     logger.Named("video"),
	}
}

// Fetch reads metadata and the best transcript track. Metadata alone is
// still a success; its body is a placeholder carrying the title so the
// pipeline has something to summarize.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (fetch.Result, error) {
	id, ok := VideoID(rawURL)
	if !ok {
		return fetch.Failure(fetch.ManualPasteMessage), nil
	}

	meta, metaErr := f.oembed(ctx, id)
	transcript, lang, trErr := f.transcript(ctx, id)

	switch {
	case trErr == nil && transcript != "":
		content := transcript
		if meta != nil && meta.Title != "" {
			content = meta.Title + "\n\n" + transcript
		}
		res := fetch.Result{
			Content:  fetch.Truncate(content),
			Language: lang,
			Success:  true,
		}
		if meta != nil {
			res.Title = meta.Title
			res.Image = meta.ThumbnailURL
		}
		return res, nil
	case metaErr == nil && meta != nil:
		f.logger.Info("video has no transcript, using metadata only",
			zap.String("id", id), zap.NamedError("transcript_err", trErr))
		return fetch.Result{
			Content: fmt.Sprintf("%s %s", noTranscriptTag, meta.Title),
			Title:   meta.Title,
			Image:   meta.ThumbnailURL,
			Success: true,
		}, nil
	default:
		f.logger.Warn("video fetch failed entirely",
			zap.String("id", id),
			zap.NamedError("metadata_err", metaErr),
			zap.NamedError("transcript_err", trErr))
		return fetch.Failure(fetch.ManualPasteMessage), fetch.ErrUnsupportedHost
	}
}

type oembedPayload struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (f *Fetcher) oembed(ctx context.Context, id string) (*oembedPayload, error) {
	watchURL := fmt.Sprintf("%s/watch?v=%s", f.base, id)
	endpoint := fmt.Sprintf("%s/oembed?url=%s&format=json", f.base, url.QueryEscape(watchURL))

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build oembed request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oembed status %d", resp.StatusCode)
	}
	var payload oembedPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode oembed payload: %w", err)
	}
	return &payload, nil
}
