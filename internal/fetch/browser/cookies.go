package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// persistedCookie is the subset of cookie state worth carrying between
// sessions.
type persistedCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
}

// LoadCookies restores cookies from the manager's cookie file into the tab.
// A missing file is not an error; the caller just starts without a session.
func (m *Manager) LoadCookies() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if m.cfg.CookieFile == "" {
			return nil
		}
		data, err := os.ReadFile(m.cfg.CookieFile)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read cookie file: %w", err)
		}
		var cookies []persistedCookie
		if err := json.Unmarshal(data, &cookies); err != nil {
			return fmt.Errorf("decode cookie file: %w", err)
		}
		params := make([]*network.CookieParam, 0, len(cookies))
		for _, c := range cookies {
			param := &network.CookieParam{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
			}
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(epochTime(c.Expires))
				param.Expires = &expires
			}
			params = append(params, param)
		}
		if err := storage.SetCookies(params).Do(ctx); err != nil {
			return fmt.Errorf("set cookies: %w", err)
		}
		return nil
	})
}

// SaveCookies writes the tab's current cookies to the manager's cookie file.
func (m *Manager) SaveCookies() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if m.cfg.CookieFile == "" {
			return nil
		}
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return fmt.Errorf("get cookies: %w", err)
		}
		persisted := make([]persistedCookie, 0, len(cookies))
		for _, c := range cookies {
			persisted = append(persisted, persistedCookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
			})
		}
		data, err := json.Marshal(persisted)
		if err != nil {
			return fmt.Errorf("encode cookies: %w", err)
		}
		if err := os.WriteFile(m.cfg.CookieFile, data, 0o600); err != nil {
			return fmt.Errorf("write cookie file: %w", err)
		}
		return nil
	})
}
