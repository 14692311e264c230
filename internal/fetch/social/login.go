package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/onebitebitcoin/zentel/internal/fetch/browser"
)

const loginURL = "https://x.com/i/flow/login"

// loginWallSignatures mark a rendered page that demands authentication
// instead of showing the post.
var loginWallSignatures = []string{
	"log in to x",
	"log in to twitter",
	"sign in to x",
	"sign up",
	"로그인",
}

// looksLikeLoginWall reports whether the rendered page is asking for
// credentials rather than showing content.
func looksLikeLoginWall(title, body string) bool {
	haystack := strings.ToLower(title + "\n" + body)
	for _, sig := range loginWallSignatures {
		if strings.Contains(haystack, sig) {
			return true
		}
	}
	return false
}

// login walks the interactive login flow and persists the session cookies,
// so later fetches skip the wall entirely.
func (b *browserStrategy) login(ctx context.Context) error {
	if b.username == "" || b.password == "" {
		return fmt.Errorf("no credentials configured")
	}
	return chromedp.Run(ctx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`input[autocomplete="username"]`, chromedp.ByQuery),
		browser.HumanDelay(500*time.Millisecond, 1500*time.Millisecond),
		chromedp.SendKeys(`input[autocomplete="username"]`, b.username+"\n", chromedp.ByQuery),
		chromedp.WaitVisible(`input[name="password"]`, chromedp.ByQuery),
		browser.HumanDelay(500*time.Millisecond, 1500*time.Millisecond),
		chromedp.SendKeys(`input[name="password"]`, b.password+"\n", chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
		browser.HumanDelay(time.Second, 3*time.Second),
		b.browser.SaveCookies(),
	)
}
