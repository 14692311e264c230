// Package browser manages the shared headless Chrome sessions used by the
// social fetcher, the JS re-render path, and the anti-bot bypass. All users
// go through one Manager so the process never runs more tabs than the
// configured slot count.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the shared browser sessions.
type Config struct {
	MaxParallel       int
	UserAgent         string
	Locale            string
	Timezone          string
	CookieFile        string
	NavigationTimeout time.Duration
	Logger            *zap.Logger
}

const (
	defaultMaxParallel = 2
	defaultNavTimeout  = 30 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	defaultLocale      = "ko-KR"
	defaultTimezone    = "Asia/Seoul"
)

// stealthScript runs before any page script and patches the properties
// headless Chrome leaks to fingerprinting checks.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['ko-KR', 'ko', 'en-US', 'en'] });
window.chrome = { runtime: {} };
`

// Manager owns the exec allocator and the tab slot limiter.
type Manager struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewManager creates the allocator with automation-hiding flags. Tabs are
// created per fetch; the allocator keeps the Chrome process warm between
// fetches.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.MaxParallel == 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Locale == "" {
		cfg.Locale = defaultLocale
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.Flag("lang", cfg.Locale),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Manager{
		cfg:         cfg,
		limiter:     make(chan struct{}, cfg.MaxParallel),
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close tears down the allocator and the Chrome process.
func (m *Manager) Close() {
	m.allocCancel()
}

// NavigationTimeout returns the per-navigation deadline tabs should use.
func (m *Manager) NavigationTimeout() time.Duration {
	return m.cfg.NavigationTimeout
}

// CookieFile returns the configured cookie persistence path, empty when
// cookie persistence is disabled.
func (m *Manager) CookieFile() string {
	return m.cfg.CookieFile
}

// RunInTab acquires a slot, opens a fresh stealth tab, and hands its context
// to fn. The slot is held until fn returns, so fn bounds total browser
// concurrency.
func (m *Manager) RunInTab(ctx context.Context, fn func(tabCtx context.Context) error) error {
	select {
	case m.limiter <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
	defer func() { <-m.limiter }()

	tabCtx, tabCancel := chromedp.NewContext(m.allocator)
	defer tabCancel()

	// Tie tab lifetime to the caller's context.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	if err := chromedp.Run(tabCtx, m.stealthSetup()); err != nil {
		return fmt.Errorf("stealth setup: %w", err)
	}
	return fn(tabCtx)
}

func (m *Manager) stealthSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
			return fmt.Errorf("install stealth script: %w", err)
		}
		if err := emulation.SetTimezoneOverride(m.cfg.Timezone).Do(ctx); err != nil {
			return fmt.Errorf("set timezone: %w", err)
		}
		if err := emulation.SetLocaleOverride().WithLocale(m.cfg.Locale).Do(ctx); err != nil {
			return fmt.Errorf("set locale: %w", err)
		}
		return nil
	})
}
