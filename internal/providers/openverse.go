package providers

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/jonathan/course-illustrator/internal/fetch"
	"github.com/jonathan/course-illustrator/internal/types"
)

// DefaultOpenverseBaseURL is the public Openverse API endpoint.
const DefaultOpenverseBaseURL = "https://api.openverse.org/v1/images/"

const openversePageSize = 20

// Openverse queries the Openverse CC image catalog over its JSON API.
type Openverse struct {
	baseURL string
	options *fetch.Options
}

// NewOpenverse creates an Openverse client. Empty baseURL uses the public API.
func NewOpenverse(baseURL string, options *fetch.Options) *Openverse {
	if baseURL == "" {
		baseURL = DefaultOpenverseBaseURL
	}
	return &Openverse{baseURL: baseURL, options: options}
}

// Name implements Provider.
func (o *Openverse) Name() string { return "openverse" }

type openverseResponse struct {
	Results []openverseResult `json:"results"`
}

type openverseResult struct {
	URL               string `json:"url"`
	Title             string `json:"title"`
	ForeignLandingURL string `json:"foreign_landing_url"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
}

// Search implements Provider. A malformed response body fails closed with an
// empty candidate list.
func (o *Openverse) Search(ctx context.Context, query string) ([]types.ImageCandidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("page_size", "20")

	result, err := fetch.URL(ctx, o.baseURL+"?"+params.Encode(), o.options)
	if err != nil {
		return nil, &Error{Provider: o.Name(), Message: "search request failed", Cause: err}
	}

	var resp openverseResponse
	if err := json.Unmarshal(result.Body, &resp); err != nil {
		// Fail closed: garbage from the provider is not a resolution failure.
		return nil, nil
	}

	candidates := make([]types.ImageCandidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		candidates = append(candidates, types.ImageCandidate{
			URL:            r.URL,
			Title:          r.Title,
			PageURL:        r.ForeignLandingURL,
			Width:          r.Width,
			Height:         r.Height,
			SourceProvider: o.Name(),
		})
		if len(candidates) >= openversePageSize {
			break
		}
	}
	return candidates, nil
}
