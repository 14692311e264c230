package browser

import (
	"context"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// HumanDelay sleeps for a random duration in [min, max], imitating a reader
// pausing on the page.
func HumanDelay(min, max time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		d := min
		if max > min {
			d += time.Duration(rand.Int63n(int64(max - min)))
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// RandomScroll wheels the page down by a small random amount.
func RandomScroll() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		delta := float64(200 + rand.Intn(400))
		return input.DispatchMouseEvent(input.MouseWheel, 200, 300).
			WithDeltaX(0).
			WithDeltaY(delta).
			Do(ctx)
	})
}

func epochTime(seconds float64) time.Time {
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
