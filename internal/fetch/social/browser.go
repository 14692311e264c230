package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/fetch"
	"github.com/onebitebitcoin/zentel/internal/fetch/browser"
)

// browserStrategy renders the post in a stealth tab. It prefers long-form
// article bodies over the short post text, since escalation usually means
// the post is an article pointer. When the page turns out to be a login
// wall and credentials are configured, it logs in once and retries.
type browserStrategy struct {
	browser  *browser.Manager
	username string
	password string
	logger   *zap.Logger
}

type renderedPost struct {
	title   string
	content string
	body    string
}

func (b *browserStrategy) name() string { return "browser" }

func (b *browserStrategy) attempt(ctx context.Context, id, _ string) (fetch.Result, error) {
	var post renderedPost
	err := b.browser.RunInTab(ctx, func(tabCtx context.Context) error {
		navCtx, cancel := context.WithTimeout(tabCtx, b.browser.NavigationTimeout())
		defer cancel()

		var err error
		post, err = b.render(navCtx, id)
		if err != nil {
			return err
		}
		if post.content == "" && looksLikeLoginWall(post.title, post.body) && b.username != "" {
			b.logger.Info("post behind login wall, authenticating", zap.String("id", id))
			if err := b.login(navCtx); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			post, err = b.render(navCtx, id)
			if err != nil {
				return err
			}
		}
		return chromedp.Run(navCtx, b.browser.SaveCookies())
	})
	if err != nil {
		return fetch.Result{}, err
	}

	content := post.content
	if content == "" {
		content = post.body
	}
	if content == "" {
		return fetch.Result{}, fmt.Errorf("rendered post has no readable text")
	}
	return fetch.Result{
		Content: fetch.Truncate(content),
		Title:   post.title,
		Success: true,
	}, nil
}

// render navigates to the post and extracts its text. Each extraction is
// best effort; selectors differ between post layouts and only one needs to
// hit.
func (b *browserStrategy) render(ctx context.Context, id string) (renderedPost, error) {
	if err := chromedp.Run(ctx,
		b.browser.LoadCookies(),
		chromedp.Navigate(CanonicalURL(id)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		browser.HumanDelay(500*time.Millisecond, 2*time.Second),
	); err != nil {
		return renderedPost{}, fmt.Errorf("navigate to post: %w", err)
	}

	var title, articleText, tweetText, bodyText string
	_ = chromedp.Run(ctx, chromedp.Title(&title))
	_ = chromedp.Run(ctx, chromedp.Text(`article [data-testid="longformRichTextComponent"]`, &articleText, chromedp.ByQuery))
	if articleText == "" {
		_ = chromedp.Run(ctx, chromedp.Text(`[data-testid="tweetText"]`, &tweetText, chromedp.ByQuery))
	}
	_ = chromedp.Run(ctx, chromedp.Text("main", &bodyText, chromedp.ByQuery))
	if bodyText == "" {
		_ = chromedp.Run(ctx, chromedp.Text("body", &bodyText, chromedp.ByQuery))
	}

	content := strings.TrimSpace(articleText)
	if content == "" {
		content = strings.TrimSpace(tweetText)
	}
	return renderedPost{
		title:   strings.TrimSpace(title),
		content: content,
		body:    strings.TrimSpace(bodyText),
	}, nil
}
