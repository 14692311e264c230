// Package bypass drives a stealth browser session through interstitial
// anti-bot challenges until the real page appears or the budget runs out.
package bypass

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/fetch"
	"github.com/onebitebitcoin/zentel/internal/fetch/browser"
)

// challengeSignatures are lowercase substrings that identify challenge
// interstitials in page titles or body text.
var challengeSignatures = []string{
	"just a moment",
	"checking your browser",
	"verify you are human",
	"verifying you are human",
	"attention required",
	"cf-challenge",
	"captcha",
	"access denied",
	"잠시만 기다려",
}

// IsChallenge reports whether the title or body still looks like an anti-bot
// interstitial rather than real content.
func IsChallenge(title, body string) bool {
	lowTitle := strings.ToLower(title)
	lowBody := strings.ToLower(body)
	if len(lowBody) > 2000 {
		lowBody = lowBody[:2000]
	}
	for _, sig := range challengeSignatures {
		if strings.Contains(lowTitle, sig) || strings.Contains(lowBody, sig) {
			return true
		}
	}
	return false
}

// Budget and pacing for a bypass run.
const (
	totalBudget     = 2 * time.Minute
	maxAttempts     = 3
	pollRounds      = 5
	waitMin         = 500 * time.Millisecond
	waitMax         = 3 * time.Second
	retryBackoffMin = 2 * time.Second
	retryBackoffMax = 5 * time.Second
	scrollChance    = 0.4
)

// Bypass renders challenge-guarded pages through the shared browser.
type Bypass struct {
	browser *browser.Manager
	logger  *zap.Logger
}

// New creates a Bypass on the shared browser manager.
func New(mgr *browser.Manager, logger *zap.Logger) *Bypass {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bypass{browser: mgr, logger: logger.Named("bypass")}
}

// Render loads the URL in a fresh stealth tab and waits out the challenge
// with human-paced polling. It returns the rendered HTML and title on
// success, or fetch.ErrChallengeBlocked once every attempt stays on the
// interstitial.
func (b *Bypass) Render(ctx context.Context, rawURL string) (html, title string, err error) {
	ctx, cancel := context.WithTimeout(ctx, totalBudget)
	defer cancel()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		html, title, err = b.attempt(ctx, rawURL)
		if err == nil {
			return html, title, nil
		}
		if ctx.Err() != nil {
			return "", "", fmt.Errorf("bypass budget exhausted: %w", fetch.ErrChallengeBlocked)
		}
		b.logger.Info("bypass attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < maxAttempts {
			if sleepErr := randomSleep(ctx, retryBackoffMin, retryBackoffMax); sleepErr != nil {
				break
			}
		}
	}
	if errors.Is(err, fetch.ErrChallengeBlocked) {
		return "", "", err
	}
	return "", "", fmt.Errorf("bypass failed: %w", fetch.ErrChallengeBlocked)
}

// attempt runs one session: navigate, then poll with human pacing until the
// challenge clears.
func (b *Bypass) attempt(ctx context.Context, rawURL string) (string, string, error) {
	var html, title string
	err := b.browser.RunInTab(ctx, func(tabCtx context.Context) error {
		navCtx, cancel := context.WithTimeout(tabCtx, b.browser.NavigationTimeout())
		defer cancel()
		if err := chromedp.Run(navCtx,
			chromedp.Navigate(rawURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}

		for round := 0; round < pollRounds; round++ {
			actions := []chromedp.Action{browser.HumanDelay(waitMin, waitMax)}
			if rand.Float64() < scrollChance {
				actions = append(actions, browser.RandomScroll())
			}
			var body string
			actions = append(actions,
				chromedp.Title(&title),
				chromedp.Text("body", &body, chromedp.ByQuery),
			)
			if err := chromedp.Run(tabCtx, actions...); err != nil {
				return fmt.Errorf("poll round %d: %w", round+1, err)
			}
			if !IsChallenge(title, body) {
				if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
					return fmt.Errorf("read html: %w", err)
				}
				return nil
			}
		}
		return fmt.Errorf("still on challenge after %d rounds: %w", pollRounds, fetch.ErrChallengeBlocked)
	})
	if err != nil {
		return "", "", err
	}
	return html, title, nil
}

func randomSleep(ctx context.Context, min, max time.Duration) error {
	d := min + time.Duration(rand.Int63n(int64(max-min)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
