package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

// Listing page limits
const (
	// PageSize is the number of results the board shows per page.
	PageSize = 15
	// MaxCardsPerPage bounds how many cards are parsed from one page.
	MaxCardsPerPage = 20
	// DefaultMaxPages is the number of result pages read per query.
	DefaultMaxPages = 3
	// maxCompanyLength rejects company candidates that are clearly a whole card.
	maxCompanyLength = 100
)

// Query names one listing search.
type Query struct {
	Term  string
	Limit int
}

// ListingSource supplies raw listings for a search.
type ListingSource interface {
	FetchListings(ctx context.Context, q Query) ([]types.RawListing, error)
}

// Selector fallbacks, tried in order.
var (
	cardSelectors = []string{
		`div[data-testid="job-card"]`,
		"div.css-1gatmva",
		"div.css-pkv5jc",
		".job-card",
		".job-listing",
		"article",
	}
	titleSelectors = []string{
		"h2 a",
		"h3 a",
		`a[data-testid="job-title"]`,
	}
	companySelectors = []string{
		`[data-testid="job-company"]`,
		".css-17s97q8",
		`a[href*="/jobs/careers/"]`,
	}
	descriptionSelectors = []string{
		`[data-testid="job-description"]`,
		".css-y4udm8",
		".css-1ubo9m8",
		".job-description",
		"p",
	}
)

// ParseListings extracts listings from a search results page. Relative links are resolved
// against base. Cards without a title are skipped.
func ParseListings(html string, base *url.URL, location string, now time.Time) ([]types.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var cards *goquery.Selection
	for _, selector := range cardSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			cards = sel
			break
		}
	}
	if cards == nil {
		return []types.RawListing{}, nil
	}

	listings := make([]types.RawListing, 0, min(cards.Length(), MaxCardsPerPage))
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= MaxCardsPerPage {
			return false
		}
		if l, ok := parseCard(card, base, location, now); ok {
			listings = append(listings, l)
		}
		return true
	})
	return listings, nil
}

func parseCard(card *goquery.Selection, base *url.URL, location string, now time.Time) (types.RawListing, bool) {
	var link *goquery.Selection
	for _, selector := range titleSelectors {
		if sel := card.Find(selector).First(); sel.Length() > 0 && cleanWhitespace(sel.Text()) != "" {
			link = sel
			break
		}
	}
	if link == nil {
		// Any link in the card
		link = card.Find("a").First()
	}
	title := cleanWhitespace(link.Text())
	if title == "" {
		return types.RawListing{}, false
	}

	href, _ := link.Attr("href")
	company := types.DefaultCompany
	for _, selector := range companySelectors {
		text := cleanWhitespace(card.Find(selector).First().Text())
		text = strings.TrimSpace(strings.TrimSuffix(text, "-"))
		if text != "" && len(text) < maxCompanyLength {
			company = text
			break
		}
	}

	var description string
	for _, selector := range descriptionSelectors {
		if text := cleanWhitespace(card.Find(selector).First().Text()); text != "" {
			description = text
			break
		}
	}

	if location == "" {
		location = types.DefaultLocation
	}
	return types.RawListing{
		Title:       title,
		Company:     company,
		Description: description,
		URL:         resolveURL(base, href),
		Location:    location,
		ScrapedAt:   now,
	}, true
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil || ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// WuzzufConfig configures a WuzzufSource.
type WuzzufConfig struct {
	BaseURL   string
	Location  string
	MaxPages  int
	PageDelay time.Duration
	Options   *Options
	// Render, when set, is used for pages whose static HTML has no cards.
	Render Renderer
	Logger *zap.Logger
	Now    func() time.Time
}

// WuzzufSource reads listings from the Wuzzuf job board search pages.
type WuzzufSource struct {
	base    *url.URL
	cfg     WuzzufConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

var _ ListingSource = (*WuzzufSource)(nil)

// NewWuzzufSource creates a source. Page requests are paced to one per PageDelay.
func NewWuzzufSource(cfg WuzzufConfig) (*WuzzufSource, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://wuzzuf.net"
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid listing base URL %q", cfg.BaseURL)
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.Options == nil {
		cfg.Options = DefaultOptions()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.PageDelay > 0 {
		limit = rate.Every(cfg.PageDelay)
	}
	return &WuzzufSource{
		base:    base,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}, nil
}

// SearchURL returns the results page URL for term and zero-based page.
func (s *WuzzufSource) SearchURL(term string, page int) string {
	u := *s.base
	u.Path = "/search/jobs/"
	q := url.Values{}
	q.Set("a", "hpb")
	q.Set("q", term)
	q.Set("start", fmt.Sprint(page*PageSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchListings implements ListingSource. A failure on the first page is returned as an
// error; a failure on a later page ends the search with what was collected.
func (s *WuzzufSource) FetchListings(ctx context.Context, q Query) ([]types.RawListing, error) {
	term := strings.TrimSpace(q.Term)
	if term == "" {
		return nil, fmt.Errorf("search term is required")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = PageSize
	}

	var listings []types.RawListing
	for page := 0; page < s.cfg.MaxPages && len(listings) < limit; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return listings, err
		}

		pageURL := s.SearchURL(term, page)
		found, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			s.log.Warn("stopping listing search", zap.String("url", pageURL), zap.Error(err))
			break
		}
		if len(found) == 0 {
			s.log.Info("no listings on page", zap.String("term", term), zap.Int("page", page))
			break
		}
		listings = append(listings, found...)
	}

	if len(listings) > limit {
		listings = listings[:limit]
	}
	s.log.Info("fetched listings", zap.String("term", term), zap.Int("count", len(listings)))
	return listings, nil
}

func (s *WuzzufSource) fetchPage(ctx context.Context, pageURL string) ([]types.RawListing, error) {
	res, err := GetPage(ctx, pageURL, s.cfg.Options)
	if err != nil {
		return nil, err
	}
	found, err := ParseListings(res.HTML, s.base, s.cfg.Location, s.cfg.Now())
	if err != nil {
		return nil, err
	}
	if len(found) > 0 || s.cfg.Render == nil {
		return found, nil
	}

	html, err := s.cfg.Render(ctx, pageURL)
	if err != nil {
		s.log.Warn("browser fallback failed", zap.String("url", pageURL), zap.Error(err))
		return found, nil
	}
	return ParseListings(html, s.base, s.cfg.Location, s.cfg.Now())
}

// IsStatus reports whether err is a fetch error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.StatusCode == status
}
