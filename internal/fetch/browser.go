// Package fetch - browser.go provides headless browser rendering for
// provider pages that only populate search results client-side.
package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// MinRenderedLength is the minimum HTML length to consider a plain HTTP fetch
// of a provider search page usable. Shorter pages are likely JS-rendered
// shells and need the browser fallback.
const MinRenderedLength = 500

// ShouldUseBrowser reports whether a fetched provider page looks like an
// unrendered SPA shell.
func ShouldUseBrowser(html string) bool {
	return len(strings.TrimSpace(html)) < MinRenderedLength
}

// WithBrowser renders a page in a headless browser and returns the rendered
// HTML. Requires Chrome/Chromium on the system.
func WithBrowser(ctx context.Context, url string, timeout time.Duration, verbose bool) (string, error) {
	if verbose {
		log.Printf("[BROWSER] Starting headless browser for: %s", url)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		// Give client-side search results time to render
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &Error{
			URL:       url,
			Message:   fmt.Sprintf("browser rendering failed after %s", timeout),
			Retryable: true,
			Cause:     err,
		}
	}

	if verbose {
		log.Printf("[BROWSER] Rendered %d bytes from %s", len(html), url)
	}
	return html, nil
}
