package video

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

var captionTracksPattern = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

// captionTrack mirrors the track descriptors embedded in the watch page.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" marks auto-generated tracks
}

// transcript finds the best caption track and returns its joined text and
// language code.
func (f *Fetcher) transcript(ctx context.Context, id string) (string, string, error) {
	tracks, err := f.listTracks(ctx, id)
	if err != nil {
		return "", "", err
	}
	track := pickTrack(tracks, f.nativeLang)
	if track == nil {
		return "", "", fmt.Errorf("no caption tracks available")
	}
	text, err := f.downloadTrack(ctx, track.BaseURL)
	if err != nil {
		return "", "", err
	}
	return text, track.LanguageCode, nil
}

func (f *Fetcher) listTracks(ctx context.Context, id string) ([]captionTrack, error) {
	ctx, cancel := context.WithTimeout(ctx, transcriptTimeout)
	defer cancel()

	watchURL := fmt.Sprintf("%s/watch?v=%s", f.base, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build watch request: %w", err)
	}
	req.Header.Set("Accept-Language", f.nativeLang+",en;q=0.8")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watch page request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}

	m := captionTracksPattern.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("watch page lists no caption tracks")
	}
	var tracks []captionTrack
	if err := json.Unmarshal(m[1], &tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}
	return tracks, nil
}

// pickTrack applies the language preference order, favoring manually
// authored tracks over auto-generated ones at every step.
func pickTrack(tracks []captionTrack, nativeLang string) *captionTrack {
	if len(tracks) == 0 {
		return nil
	}
	preferred := []string{nativeLang, "en", "en-US", "en-GB"}
	for _, lang := range preferred {
		if t := findTrack(tracks, lang, false); t != nil {
			return t
		}
		if t := findTrack(tracks, lang, true); t != nil {
			return t
		}
	}
	// Any manual track, then whatever exists.
	for i := range tracks {
		if tracks[i].Kind != "asr" {
			return &tracks[i]
		}
	}
	return &tracks[0]
}

func findTrack(tracks []captionTrack, lang string, auto bool) *captionTrack {
	for i := range tracks {
		if !strings.EqualFold(tracks[i].LanguageCode, lang) {
			continue
		}
		if auto == (tracks[i].Kind == "asr") {
			return &tracks[i]
		}
	}
	return nil
}

type timedText struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

func (f *Fetcher) downloadTrack(ctx context.Context, baseURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcriptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return "", fmt.Errorf("build transcript request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript status %d", resp.StatusCode)
	}

	var doc timedText
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode transcript xml: %w", err)
	}
	parts := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		if s := strings.TrimSpace(t.Value); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("transcript is empty")
	}
	return strings.Join(parts, " "), nil
}
