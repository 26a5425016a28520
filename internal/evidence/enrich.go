package evidence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html"

	"github.com/ppiankov/factweave/internal/model"
)

// enrichMaxContentChars caps extracted page text so verifier prompts stay
// within budget even before truncation.
const enrichMaxContentChars = 4000

// PageEnricher fetches the pages behind top-ranked evidence articles and
// fills in their visible text, widening the verifier's context beyond the
// provider snippet. Enrichment is best-effort: any failure leaves the
// article as-is.
type PageEnricher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64

	robots map[string]*robotstxt.RobotsData
	mu     sync.RWMutex
}

// NewPageEnricher creates a page enricher.
func NewPageEnricher(cfg model.EvidenceConfig) *PageEnricher {
	return &PageEnricher{
		httpClient: &http.Client{
			Timeout: cfg.PageTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		robots:    make(map[string]*robotstxt.RobotsData),
	}
}

// Enrich fills Content for up to topN articles in the set, skipping
// articles that already carry content and pages robots.txt disallows.
func (e *PageEnricher) Enrich(ctx context.Context, set *model.FilteredEvidenceSet, topN int) {
	for i := range set.Articles {
		if i >= topN {
			return
		}
		if set.Articles[i].Content != "" {
			continue
		}
		if !e.allowed(ctx, set.Articles[i].URL) {
			continue
		}
		if text, err := e.fetchText(ctx, set.Articles[i].URL); err == nil && text != "" {
			set.Articles[i].Content = text
		}
	}
}

// allowed checks robots.txt for the URL's host, caching per host.
// Unreachable robots.txt allows by default.
func (e *PageEnricher) allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	e.mu.RLock()
	data, exists := e.robots[parsed.Host]
	e.mu.RUnlock()

	if !exists {
		data = e.fetchRobots(ctx, parsed)
		e.mu.Lock()
		e.robots[parsed.Host] = data
		e.mu.Unlock()
	}

	if data == nil {
		return true
	}
	return data.TestAgent(parsed.Path, e.userAgent)
}

func (e *PageEnricher) fetchRobots(ctx context.Context, pageURL *url.URL) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", pageURL.Scheme, pageURL.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}

// fetchText GETs the page and extracts its visible text.
func (e *PageEnricher) fetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes))
	if err != nil {
		return "", err
	}

	text := visibleText(string(body))
	if len(text) > enrichMaxContentChars {
		text = text[:enrichMaxContentChars]
	}
	return text, nil
}

// visibleText extracts text nodes from HTML, skipping scripts and styles.
func visibleText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(buf.String())
}
