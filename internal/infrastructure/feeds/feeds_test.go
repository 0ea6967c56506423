package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ContentForge/internal/config"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <item>
      <title>Amazon fee update</title>
      <link>https://news.example/amazon-fees</link>
      <description>&lt;p&gt;Sellers face &lt;b&gt;new&lt;/b&gt; referral fees.&lt;/p&gt;</description>
      <pubDate>Thu, 12 Feb 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>TikTok Shop expands</title>
      <link>https://news.example/tiktok-shop</link>
      <description>Live commerce goes global.</description>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Stablecoin settlement pilot</title>
    <link href="https://blog.example/stablecoin"/>
    <summary>Cross-border payment rails.</summary>
    <published>2026-02-12T09:00:00Z</published>
  </entry>
</feed>`

func TestSearchParsesRSSAndCleansHTML(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "amazon sellers" {
			t.Errorf("query = %q", got)
		}
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	src := NewSource(server.Client(), nil, 2, time.Second, nil)
	src.newsBase = server.URL

	items, err := src.Search(context.Background(), "amazon sellers")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Title != "Amazon fee update" {
		t.Fatalf("title = %q", items[0].Title)
	}
	if items[0].Content != "Sellers face new referral fees." {
		t.Fatalf("summary not cleaned: %q", items[0].Content)
	}
	if items[0].Keyword != "amazon sellers" {
		t.Fatalf("keyword = %q", items[0].Keyword)
	}
}

func TestSubscriptionsParsesAtom(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleAtom))
	}))
	defer server.Close()

	subs := []config.FeedConfig{{Name: "trade-blog", URL: server.URL, Tag: "Feedspot"}}
	src := NewSource(server.Client(), subs, 2, time.Second, nil)

	items := src.Subscriptions(context.Background())
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].URL != "https://blog.example/stablecoin" {
		t.Fatalf("url = %q", items[0].URL)
	}
	if items[0].Source != "Feedspot" {
		t.Fatalf("source = %q", items[0].Source)
	}
}

func TestSearchAllToleratesPartialFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "broken" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	src := NewSource(server.Client(), nil, 3, time.Second, nil)
	src.newsBase = server.URL

	items := src.SearchAll(context.Background(), []string{"good one", "broken", "good two"})
	if len(items) != 4 {
		t.Fatalf("got %d items, want 4 (two successful queries x two items)", len(items))
	}
}

func TestSearchAllEmptyQueries(t *testing.T) {
	t.Parallel()

	src := NewSource(nil, nil, 2, time.Second, nil)
	if items := src.SearchAll(context.Background(), nil); items != nil {
		t.Fatalf("expected nil, got %v", items)
	}
}
