package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/fetch"
)

// DefaultSyndicationBase is the public CDN endpoint that serves embedded
// tweet payloads without authentication.
const DefaultSyndicationBase = "https://cdn.syndication.twimg.com"

const syndicationTimeout = 10 * time.Second

// escalationError tells the strategy chain to move to the next strategy.
type escalationError struct{ reason string }

func (e *escalationError) Error() string { return "needs browser: " + e.reason }

// tweetPayload is the subset of the syndication response the fetcher reads.
type tweetPayload struct {
	Text string `json:"text"`
	User struct {
		Name            string `json:"name"`
		ScreenName      string `json:"screen_name"`
		ProfileImageURL string `json:"profile_image_url_https"`
	} `json:"user"`
	Photos []struct {
		URL string `json:"url"`
	} `json:"photos"`
	Entities struct {
		URLs []struct {
			URL         string `json:"url"`
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
}

// syndicationStrategy reads the post through the embed CDN, resolving t.co
// shorteners along the way. It asks for escalation when the payload turns
// out to be a long-form article pointer or an empty redirect shell.
type syndicationStrategy struct {
	base   string
	client *http.Client
	logger *zap.Logger
}

func (s *syndicationStrategy) name() string { return "syndication" }

func (s *syndicationStrategy) attempt(ctx context.Context, id, _ string) (fetch.Result, error) {
	payload, err := s.lookup(ctx, id)
	if err != nil {
		return fetch.Result{}, &escalationError{reason: err.Error()}
	}

	text := strings.TrimSpace(payload.Text)
	for _, entity := range payload.Entities.URLs {
		if entity.ExpandedURL != "" {
			text = strings.ReplaceAll(text, entity.URL, entity.ExpandedURL)
		}
	}
	resolved := s.resolveShorteners(ctx, text)

	if strings.Contains(resolved, "/i/article/") {
		return fetch.Result{}, &escalationError{reason: "post points at a long-form article"}
	}
	if isBareLink(resolved) {
		return fetch.Result{}, &escalationError{reason: "post body is only a redirect link"}
	}

	title := payload.User.Name
	if payload.User.ScreenName != "" {
		title = fmt.Sprintf("%s (@%s)", payload.User.Name, payload.User.ScreenName)
	}
	image := payload.User.ProfileImageURL
	if len(payload.Photos) > 0 {
		image = payload.Photos[0].URL
	}
	return fetch.Result{
		Content: fetch.Truncate(resolved),
		Title:   title,
		Image:   image,
		Success: true,
	}, nil
}

func (s *syndicationStrategy) lookup(ctx context.Context, id string) (*tweetPayload, error) {
	endpoint := fmt.Sprintf("%s/tweet-result?id=%s&token=x", s.base, url.QueryEscape(id))
	ctx, cancel := context.WithTimeout(ctx, syndicationTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build syndication request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("syndication request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("syndication status %d", resp.StatusCode)
	}
	var payload tweetPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode syndication payload: %w", err)
	}
	if strings.TrimSpace(payload.Text) == "" {
		return nil, fmt.Errorf("syndication payload has no text")
	}
	return &payload, nil
}

// resolveShorteners replaces t.co links in the text with their redirect
// targets. Resolution failures leave the short link in place.
func (s *syndicationStrategy) resolveShorteners(ctx context.Context, text string) string {
	for _, link := range shortLinkPattern.FindAllString(text, -1) {
		target, err := s.resolveOnce(ctx, link)
		if err != nil {
			s.logger.Debug("short link resolution failed", zap.String("link", link), zap.Error(err))
			continue
		}
		text = strings.ReplaceAll(text, link, target)
	}
	return text
}

func (s *syndicationStrategy) resolveOnce(ctx context.Context, link string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, syndicationTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	final := resp.Request.URL.String()
	if final == "" {
		return "", fmt.Errorf("no final url")
	}
	return final, nil
}
