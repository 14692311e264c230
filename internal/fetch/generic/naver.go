package generic

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/fetch"
)

// Naver blog posts render their body inside the mainFrame iframe, so a
// readability pass over the outer shell comes back empty. The post is read
// by following the iframe and querying editor-specific selectors instead.

var naverBlogHosts = map[string]bool{
	"blog.naver.com":   true,
	"m.blog.naver.com": true,
}

// naverContentSelectors in priority order, one per editor generation.
var naverContentSelectors = []string{
	"#postViewArea",
	".se-main-container",
	".se_component_wrap",
	"#content-area",
	".post-view",
	"#viewTypeSelector",
}

// naverMinContentLen is the shortest selector hit accepted as the post body.
const naverMinContentLen = 100

func isNaverBlog(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return naverBlogHosts[strings.ToLower(u.Hostname())]
}

// fetchNaver reads the post through the iframe, escalating to a rendered
// page for JS-only layouts. A false return sends the URL down the regular
// generic chain.
func (f *Fetcher) fetchNaver(ctx context.Context, rawURL string) (fetch.Result, bool) {
	outer, err := f.plainGet(ctx, rawURL)
	if err != nil {
		f.logger.Debug("naver outer page fetch failed", zap.String("url", rawURL), zap.Error(err))
	}

	frameURL := naverFrameURL(outer, rawURL)
	inner := outer
	if frameURL != "" {
		if page, err := f.plainGet(ctx, frameURL); err == nil {
			inner = page
		} else {
			f.logger.Debug("naver frame fetch failed", zap.String("url", frameURL), zap.Error(err))
		}
	}
	if res, ok := naverExtract(inner, outer); ok {
		return res, true
	}

	if f.browser != nil {
		target := frameURL
		if target == "" {
			target = rawURL
		}
		rendered, err := f.render(ctx, target)
		if err != nil {
			f.logger.Debug("naver render failed", zap.String("url", target), zap.Error(err))
			return fetch.Result{}, false
		}
		return naverExtract(rendered, outer)
	}
	return fetch.Result{}, false
}

// naverFrameURL finds the mainFrame iframe in the outer page and resolves
// its src against the post URL.
func naverFrameURL(outerHTML, rawURL string) string {
	if outerHTML == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
	if err != nil {
		return ""
	}
	src, ok := doc.Find("iframe#mainFrame").Attr("src")
	if !ok || src == "" {
		return ""
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// naverExtract queries the content selectors against the post HTML and the
// OG metadata against the outer shell, which is where the blog puts it.
func naverExtract(postHTML, outerHTML string) (fetch.Result, bool) {
	if strings.TrimSpace(postHTML) == "" {
		return fetch.Result{}, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(postHTML))
	if err != nil {
		return fetch.Result{}, false
	}

	var content string
	for _, sel := range naverContentSelectors {
		text := naverText(doc.Find(sel).First())
		if len([]rune(text)) > naverMinContentLen {
			content = text
			break
		}
	}
	if content == "" {
		return fetch.Result{}, false
	}

	title, image := ogMeta(outerHTML)
	if title == "" {
		title, image = ogMeta(postHTML)
	}
	return fetch.Result{
		Content: fetch.Truncate(content),
		Title:   title,
		Image:   image,
		Success: true,
	}, true
}

func naverText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	text := spacePattern.ReplaceAllString(sel.Text(), " ")
	text = linesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func ogMeta(html string) (title, image string) {
	if html == "" {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}
	title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	image, _ = doc.Find(`meta[property="og:image"]`).Attr("content")
	return strings.TrimSpace(title), strings.TrimSpace(image)
}
