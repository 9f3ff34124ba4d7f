package providers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/course-illustrator/internal/fetch"
	"github.com/jonathan/course-illustrator/internal/types"
)

// DefaultWikimediaBaseURL is the Wikimedia Commons media search page.
const DefaultWikimediaBaseURL = "https://commons.wikimedia.org/w/index.php"

const wikimediaMaxResults = 20

// browserTimeout bounds the headless fallback render.
const browserTimeout = 45 * time.Second

// Wikimedia scrapes Wikimedia Commons media search results. The search page
// sometimes renders results client-side only; with UseBrowser enabled the
// client falls back to a headless render when the plain HTML has no results.
type Wikimedia struct {
	baseURL    string
	options    *fetch.Options
	useBrowser bool
	verbose    bool
}

// NewWikimedia creates a Commons client. Empty baseURL uses the public site.
func NewWikimedia(baseURL string, options *fetch.Options, useBrowser, verbose bool) *Wikimedia {
	if baseURL == "" {
		baseURL = DefaultWikimediaBaseURL
	}
	return &Wikimedia{baseURL: baseURL, options: options, useBrowser: useBrowser, verbose: verbose}
}

// Name implements Provider.
func (w *Wikimedia) Name() string { return "wikimedia" }

// Search implements Provider.
func (w *Wikimedia) Search(ctx context.Context, query string) ([]types.ImageCandidate, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("title", "Special:MediaSearch")
	params.Set("type", "image")
	searchURL := w.baseURL + "?" + params.Encode()

	result, err := fetch.URL(ctx, searchURL, w.options)
	if err != nil {
		return nil, &Error{Provider: w.Name(), Message: "search request failed", Cause: err}
	}

	html := string(result.Body)
	candidates := w.parseResults(html)

	if len(candidates) == 0 && w.useBrowser && fetch.ShouldUseBrowser(html) {
		rendered, err := fetch.WithBrowser(ctx, searchURL, browserTimeout, w.verbose)
		if err != nil {
			// Fall through with the empty static parse; the fallback is best effort.
			return nil, nil
		}
		candidates = w.parseResults(rendered)
	}

	return candidates, nil
}

// parseResults extracts image candidates from a media search results page.
// Fails closed: unparseable HTML yields an empty list.
func (w *Wikimedia) parseResults(html string) []types.ImageCandidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var candidates []types.ImageCandidate
	doc.Find("a.sdms-image-result, .searchResultImage a, a[href*='/wiki/File:']").
		EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			img := sel.Find("img").First()
			src, ok := img.Attr("src")
			if !ok || src == "" {
				return true
			}

			pageURL, _ := sel.Attr("href")
			title := strings.TrimSpace(img.AttrOr("alt", ""))
			if title == "" {
				title = titleFromFilePage(pageURL)
			}

			candidates = append(candidates, types.ImageCandidate{
				URL:            absoluteURL(src),
				Title:          title,
				PageURL:        absoluteURL(pageURL),
				SourceProvider: w.Name(),
			})
			return len(candidates) < wikimediaMaxResults
		})

	return candidates
}

// titleFromFilePage recovers a human-readable title from a File: page link.
func titleFromFilePage(pageURL string) string {
	idx := strings.LastIndex(pageURL, "File:")
	if idx < 0 {
		return ""
	}
	name := pageURL[idx+len("File:"):]
	name = strings.ReplaceAll(name, "_", " ")
	if dot := strings.LastIndex(name, "."); dot > 0 {
		name = name[:dot]
	}
	decoded, err := url.QueryUnescape(name)
	if err != nil {
		return name
	}
	return decoded
}

func absoluteURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	if strings.HasPrefix(u, "/") {
		return "https://commons.wikimedia.org" + u
	}
	return u
}
