// Package rawfile fetches source files behind code-host viewer pages by
// rewriting the viewer URL to its raw counterpart.
package rawfile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/fetch"
)

var blobPattern = regexp.MustCompile(`^https?://(?:www\.)?github\.com/([^/]+)/([^/]+)/blob/([^/]+)/(.+)$`)

const fetchTimeout = 15 * time.Second

// RawURL rewrites a github.com blob viewer URL to raw.githubusercontent.com.
func RawURL(rawURL string) (string, bool) {
	m := blobPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", m[1], m[2], m[3], m[4]), true
}

// Config wires the rawfile fetcher.
type Config struct {
	HTTPClient *http.Client
	// RawBase and ViewerBase override the raw and viewer hosts, for tests.
	RawBase    string
	ViewerBase string
	Logger     *zap.Logger
}

// Fetcher implements fetch.Fetcher for code-host file URLs.
type Fetcher struct {
	client     *http.Client
	rawBase    string
	viewerBase string
	logger     *zap.Logger
}

// New builds the fetcher.
func New(cfg Config) *Fetcher {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:     cfg.HTTPClient,
		rawBase:    cfg.RawBase,
		viewerBase: cfg.ViewerBase,
		logger:     logger.Named("rawfile"),
	}
}

// Fetch downloads the raw file body and, best effort, the viewer page's
// metadata for the link preview.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (fetch.Result, error) {
	target, ok := RawURL(rawURL)
	if !ok {
		return fetch.Failure("link is not a viewable file"), nil
	}
	if f.rawBase != "" {
		target = f.rewriteBase(target)
	}

	content, err := f.download(ctx, target)
	if err != nil {
		return fetch.Failure("file could not be downloaded: " + err.Error()), nil
	}

	pageURL := rawURL
	if f.viewerBase != "" {
		if u, err := url.Parse(rawURL); err == nil {
			pageURL = f.viewerBase + u.Path
		}
	}

	res := fetch.Result{Content: fetch.Truncate(content), Success: true}
	if title, image, err := f.pageMetadata(ctx, pageURL); err == nil {
		res.Title = title
		res.Image = image
	} else {
		f.logger.Debug("viewer page metadata unavailable", zap.String("url", rawURL), zap.Error(err))
	}
	return res, nil
}

func (f *Fetcher) download(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build raw request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("raw request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("raw status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read raw body: %w", err)
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", fmt.Errorf("raw file is empty")
	}
	return text, nil
}

// pageMetadata reads the viewer page to pick up its title and social image.
func (f *Fetcher) pageMetadata(ctx context.Context, pageURL string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("viewer page status %d", resp.StatusCode)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", err
	}
	article, err := readability.FromReader(io.LimitReader(resp.Body, 2<<20), parsed)
	if err != nil {
		return "", "", fmt.Errorf("parse viewer page: %w", err)
	}
	return article.Title, article.Image, nil
}

func (f *Fetcher) rewriteBase(target string) string {
	return f.rawBase + strings.TrimPrefix(target, "https://raw.githubusercontent.com")
}
