// Package feeds collects scan candidates from news-search RSS and
// subscribed RSS/Atom feeds. Fetches fan out over a small fixed worker
// pool with a hard per-call timeout; partial failure yields partial
// results, never an aborted scan.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ContentForge/internal/config"
	"ContentForge/internal/domain"
	"ContentForge/internal/ports"
)

const (
	defaultNewsBase = "https://news.google.com/rss/search"
	userAgent       = "ContentForge/1.0"
	maxSummaryLen   = 500
	maxItemsPerFeed = 10
)

// Source implements ports.SearchProvider over news-search RSS plus any
// subscribed feeds from configuration.
type Source struct {
	client         *http.Client
	newsBase       string
	subscriptions  []config.FeedConfig
	logger         *slog.Logger
	workers        int
	perCallTimeout time.Duration
}

var _ ports.SearchProvider = (*Source)(nil)

// NewSource wires an HTTP client and the subscribed feed list.
func NewSource(client *http.Client, subs []config.FeedConfig, workers int, perCallTimeout time.Duration, log *slog.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if workers <= 0 {
		workers = 6
	}
	if perCallTimeout <= 0 {
		perCallTimeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		client:         client,
		newsBase:       defaultNewsBase,
		subscriptions:  subs,
		logger:         log,
		workers:        workers,
		perCallTimeout: perCallTimeout,
	}
}

// Search fetches news-search results for one query.
func (s *Source) Search(ctx context.Context, query string) ([]domain.ScoutItem, error) {
	feedURL := fmt.Sprintf("%s?q=%s&hl=en-US&gl=US&ceid=US:en", s.newsBase, url.QueryEscape(query))
	items, err := s.fetchFeed(ctx, feedURL, "GoogleNews")
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Keyword = query
	}
	return items, nil
}

// SearchAll fans the queries out over the worker pool and collects whatever
// succeeded within the per-call timeout. Results arrive unordered; callers
// re-sort by score after filtering. A failed or slow query is logged and
// abandoned, not retried.
func (s *Source) SearchAll(ctx context.Context, queries []string) []domain.ScoutItem {
	jobs := make([]func(context.Context) ([]domain.ScoutItem, error), 0, len(queries))
	for _, q := range queries {
		query := q
		jobs = append(jobs, func(jobCtx context.Context) ([]domain.ScoutItem, error) {
			return s.Search(jobCtx, query)
		})
	}
	return s.runPool(ctx, jobs)
}

// Subscriptions fetches every configured feed over the worker pool.
func (s *Source) Subscriptions(ctx context.Context) []domain.ScoutItem {
	jobs := make([]func(context.Context) ([]domain.ScoutItem, error), 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		feed := sub
		jobs = append(jobs, func(jobCtx context.Context) ([]domain.ScoutItem, error) {
			tag := feed.Tag
			if tag == "" {
				tag = feed.Name
			}
			return s.fetchFeed(jobCtx, feed.URL, tag)
		})
	}
	return s.runPool(ctx, jobs)
}

func (s *Source) runPool(ctx context.Context, jobs []func(context.Context) ([]domain.ScoutItem, error)) []domain.ScoutItem {
	if len(jobs) == 0 {
		return nil
	}

	workers := s.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	in := make(chan func(context.Context) ([]domain.ScoutItem, error))
	out := make(chan []domain.ScoutItem)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range in {
				jobCtx, cancel := context.WithTimeout(ctx, s.perCallTimeout)
				items, err := job(jobCtx)
				cancel()
				if err != nil {
					s.logger.Warn("feed fetch failed", "error", err)
					continue
				}
				out <- items
			}
		}()
	}

	go func() {
		defer close(in)
		for _, job := range jobs {
			select {
			case in <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	var collected []domain.ScoutItem
	for items := range out {
		collected = append(collected, items...)
	}
	return collected
}

// rssFeed covers both RSS 2.0 and Atom shapes.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Link  struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Summary   string `xml:"summary"`
	Content   string `xml:"content"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

func (s *Source) fetchFeed(ctx context.Context, feedURL, sourceTag string) ([]domain.ScoutItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", sourceTag, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned %s", sourceTag, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", sourceTag, err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", sourceTag, err)
	}

	var items []domain.ScoutItem
	for _, it := range feed.Channel.Items {
		if len(items) >= maxItemsPerFeed {
			break
		}
		items = append(items, domain.ScoutItem{
			Title:         strings.TrimSpace(it.Title),
			URL:           strings.TrimSpace(it.Link),
			Content:       cleanSummary(it.Description),
			Source:        sourceTag,
			PublishedDate: it.PubDate,
		})
	}
	for _, e := range feed.Entries {
		if len(items) >= maxItemsPerFeed {
			break
		}
		summary := e.Summary
		if summary == "" {
			summary = e.Content
		}
		published := e.Published
		if published == "" {
			published = e.Updated
		}
		items = append(items, domain.ScoutItem{
			Title:         strings.TrimSpace(e.Title),
			URL:           strings.TrimSpace(e.Link.Href),
			Content:       cleanSummary(summary),
			Source:        sourceTag,
			PublishedDate: published,
		})
	}

	return items, nil
}

// cleanSummary strips embedded HTML markup from a feed description and
// bounds its length.
func cleanSummary(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.ContainsAny(text, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err == nil {
			text = strings.TrimSpace(doc.Text())
		}
	}
	if len(text) > maxSummaryLen {
		text = text[:maxSummaryLen]
	}
	return text
}
