// Web tools: perform_web_search, read_web_page, search_web_page,
// scroll_web_page. Fetch + readability extraction is grounded on
// nevindra-oasis's tools/http.Tool.Fetch (go-shiori/go-readability
// with an HTML-stripping fallback); the paging/navigation-footer and
// keyword-scan behavior is new, following spec §4.6's description of
// each tool (no teacher package covers this directly — internal/web
// was the channel-product's own fetcher and was trimmed, see
// DESIGN.md).
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/haasonsaas/nexus-core/internal/agent"
)

const pageChars = 4000

// fetcher fetches a URL and extracts readable text, shared by every
// web tool below.
type fetcher struct {
	client *http.Client
}

func newFetcher() *fetcher {
	return &fetcher{client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *fetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; nexus-core/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &fetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}

	parsed, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return strings.TrimSpace(article.TextContent), nil
	}
	return stripHTML(string(body)), nil
}

// fetchError carries the HTTP status so the error formatter can
// produce the "choose a different URL" remediation spec §4.6 asks
// for on a 403.
type fetchError struct {
	URL        string
	StatusCode int
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

var tagPattern = regexp.MustCompile(`(?s)<[^>]+>`)

func stripHTML(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	return strings.Join(strings.Fields(text), " ")
}

func paginate(content string, pageSize int) []string {
	if content == "" {
		return []string{""}
	}
	var pages []string
	for len(content) > 0 {
		if len(content) <= pageSize {
			pages = append(pages, content)
			break
		}
		pages = append(pages, content[:pageSize])
		content = content[pageSize:]
	}
	return pages
}

func navigationFooter(page, total int) string {
	if page+1 >= total {
		return "\n--- END OF DOCUMENT ---"
	}
	return fmt.Sprintf("\n--- NAVIGATION (Page %d/%d) --- call scroll_web_page with page=%d for more", page+1, total, page+1)
}

// ReadWebPageTool fetches one URL and returns its readable content
// with a navigation footer.
type ReadWebPageTool struct {
	fetcher *fetcher
}

// NewReadWebPageTool creates a ReadWebPageTool.
func NewReadWebPageTool() *ReadWebPageTool {
	return &ReadWebPageTool{fetcher: newFetcher()}
}

func (t *ReadWebPageTool) Name() string        { return "read_web_page" }
func (t *ReadWebPageTool) Description() string { return "Fetch a URL and return its readable text content." }
func (t *ReadWebPageTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`)
}

func (t *ReadWebPageTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return errorResult("invalid arguments: %v. retry with a JSON object containing \"url\"", err), nil
	}
	content, err := t.fetcher.fetch(ctx, in.URL)
	if err != nil {
		return formatFetchError(err), nil
	}
	pages := paginate(content, pageChars)
	return &agent.ToolResult{Content: pages[0] + navigationFooter(0, len(pages))}, nil
}

// ScrollWebPageTool fetches one 0-indexed page of a previously read
// URL; since this core does not keep per-page server state across
// tool calls, it re-fetches and slices, matching the public contract
// ("fetch one paginated chunk (0-indexed)") without needing session
// affinity.
type ScrollWebPageTool struct {
	fetcher *fetcher
}

// NewScrollWebPageTool creates a ScrollWebPageTool.
func NewScrollWebPageTool() *ScrollWebPageTool {
	return &ScrollWebPageTool{fetcher: newFetcher()}
}

func (t *ScrollWebPageTool) Name() string { return "scroll_web_page" }
func (t *ScrollWebPageTool) Description() string {
	return "Fetch a specific 0-indexed page of a previously read web page."
}
func (t *ScrollWebPageTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"},"page":{"type":"integer"}},"required":["url","page"]}`)
}

func (t *ScrollWebPageTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct {
		URL  string `json:"url"`
		Page int    `json:"page"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	content, err := t.fetcher.fetch(ctx, in.URL)
	if err != nil {
		return formatFetchError(err), nil
	}
	pages := paginate(content, pageChars)
	if in.Page < 0 || in.Page >= len(pages) {
		return &agent.ToolResult{
			Content: fmt.Sprintf("page %d is out of bounds; this document has %d pages (0-%d). stop paging.", in.Page, len(pages), len(pages)-1),
			IsError: true,
		}, nil
	}
	return &agent.ToolResult{Content: pages[in.Page] + navigationFooter(in.Page, len(pages))}, nil
}

// SearchWebPageTool keyword-scans a fetched page for a query term.
type SearchWebPageTool struct {
	fetcher *fetcher
}

// NewSearchWebPageTool creates a SearchWebPageTool.
func NewSearchWebPageTool() *SearchWebPageTool {
	return &SearchWebPageTool{fetcher: newFetcher()}
}

func (t *SearchWebPageTool) Name() string { return "search_web_page" }
func (t *SearchWebPageTool) Description() string {
	return "Search the text of a web page for a keyword or phrase."
}
func (t *SearchWebPageTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"},"query":{"type":"string"}},"required":["url","query"]}`)
}

func (t *SearchWebPageTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct {
		URL   string `json:"url"`
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	content, err := t.fetcher.fetch(ctx, in.URL)
	if err != nil {
		return formatFetchError(err), nil
	}

	lower := strings.ToLower(content)
	query := strings.ToLower(in.Query)
	var hits []string
	idx := 0
	for {
		pos := strings.Index(lower[idx:], query)
		if pos < 0 {
			break
		}
		pos += idx
		start := pos - 80
		if start < 0 {
			start = 0
		}
		end := pos + len(query) + 80
		if end > len(content) {
			end = len(content)
		}
		hits = append(hits, "..."+content[start:end]+"...")
		idx = pos + len(query)
		if len(hits) >= 5 {
			break
		}
	}

	if len(hits) == 0 {
		return &agent.ToolResult{
			Content: fmt.Sprintf("no matches for %q. try a shorter phrase or a synonym.", in.Query),
			IsError: true,
		}, nil
	}
	return &agent.ToolResult{Content: strings.Join(hits, "\n\n")}, nil
}

// PerformWebSearchTool runs a search query and returns the top result
// links, scraped from a SERP page with a regex the way spec §4.6
// describes ("regex-parse the top ≤5 result links").
type PerformWebSearchTool struct {
	fetcher *fetcher
}

// NewPerformWebSearchTool creates a PerformWebSearchTool.
func NewPerformWebSearchTool() *PerformWebSearchTool {
	return &PerformWebSearchTool{fetcher: newFetcher()}
}

func (t *PerformWebSearchTool) Name() string { return "perform_web_search" }
func (t *PerformWebSearchTool) Description() string {
	return "Search the web and return the top result titles and URLs."
}
func (t *PerformWebSearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`)
}

var serpResultPattern = regexp.MustCompile(`(?s)<a[^>]+href="(https?://[^"]+)"[^>]*>(.*?)</a>`)

func (t *PerformWebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(in.Query)
	html, err := fetchRaw(ctx, t.fetcher.client, searchURL)
	if err != nil {
		return formatFetchError(err), nil
	}

	matches := serpResultPattern.FindAllStringSubmatch(html, -1)
	var lines []string
	for i, m := range matches {
		if i >= 5 {
			break
		}
		title := stripHTML(m[2])
		lines = append(lines, fmt.Sprintf("%d. **%s** -> %s", i+1, title, m[1]))
	}
	if len(lines) == 0 {
		return &agent.ToolResult{Content: "no search results found. try rephrasing the query.", IsError: true}, nil
	}
	return &agent.ToolResult{Content: strings.Join(lines, "\n")}, nil
}

func fetchRaw(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; nexus-core/1.0)")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", &fetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func formatFetchError(err error) *agent.ToolResult {
	var fe *fetchError
	if e, ok := err.(*fetchError); ok {
		fe = e
	}
	if fe != nil && fe.StatusCode == http.StatusForbidden {
		return &agent.ToolResult{
			Content: fmt.Sprintf("access to %s was forbidden (HTTP 403). choose a different URL.", fe.URL),
			IsError: true,
		}
	}
	return &agent.ToolResult{Content: err.Error(), IsError: true}
}

func errorResult(format string, args ...any) *agent.ToolResult {
	return &agent.ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}
