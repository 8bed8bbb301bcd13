package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Renderer returns the HTML of a page after client-side rendering.
type Renderer func(ctx context.Context, url string) (string, error)

// cardSettle is how long rendered pages get to attach listing cards after load.
const cardSettle = 2 * time.Second

// BrowserRenderer returns a Renderer backed by headless Chrome, which must be installed.
// Each call starts its own browser and gives up after timeout.
func BrowserRenderer(timeout time.Duration, log *zap.Logger) Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(DefaultUserAgent),
	)

	return func(ctx context.Context, url string) (string, error) {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
		defer cancelAlloc()
		tabCtx, cancelTab := chromedp.NewContext(allocCtx)
		defer cancelTab()
		tabCtx, cancel := context.WithTimeout(tabCtx, timeout)
		defer cancel()

		var html string
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body"),
			chromedp.Sleep(cardSettle),
			chromedp.OuterHTML("html", &html),
		); err != nil {
			return "", fmt.Errorf("browser rendering failed for %s: %w", url, err)
		}
		log.Debug("rendered listing page", zap.String("url", url), zap.Int("bytes", len(html)))
		return html, nil
	}
}
