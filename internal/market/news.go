package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const serpAPIEndpoint = "https://serpapi.com/search.json"

// NewsArticle is one headline from the Google News engine.
type NewsArticle struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	Date   string `json:"date"`
	Link   string `json:"link"`
}

// NewsService fetches recent coin headlines via SerpAPI's Google News
// engine and formats them for the model prompt.
type NewsService struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewNewsService(apiKey string) *NewsService {
	return &NewsService{
		endpoint: serpAPIEndpoint,
		apiKey:   strings.TrimSpace(apiKey),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type serpNewsResponse struct {
	NewsResults []struct {
		Title  string          `json:"title"`
		Link   string          `json:"link"`
		Date   string          `json:"date"`
		Source json.RawMessage `json:"source"`
	} `json:"news_results"`
	Error string `json:"error"`
}

// FetchHeadlines returns up to num recent articles for the query within
// the given SerpAPI time window ("qdr:d" past day, "qdr:w" past week).
func (s *NewsService) FetchHeadlines(ctx context.Context, query, timePeriod string, num int) ([]NewsArticle, error) {
	if s == nil || s.apiKey == "" {
		return nil, fmt.Errorf("news: serpapi key not configured")
	}
	if num <= 0 {
		num = 10
	}
	params := url.Values{}
	params.Set("engine", "google_news")
	params.Set("api_key", s.apiKey)
	params.Set("q", query)
	params.Set("gl", "us")
	params.Set("hl", "en")
	params.Set("num", fmt.Sprintf("%d", num))
	params.Set("sort", "date")
	if tp := strings.TrimSpace(timePeriod); tp != "" {
		params.Set("tbs", tp)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("news: unexpected status %s", resp.Status)
	}

	var payload serpNewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("news: api error: %s", payload.Error)
	}

	out := make([]NewsArticle, 0, len(payload.NewsResults))
	for _, item := range payload.NewsResults {
		if len(out) >= num {
			break
		}
		out = append(out, NewsArticle{
			Title:  strings.TrimSpace(item.Title),
			Source: sourceName(item.Source),
			Date:   strings.TrimSpace(item.Date),
			Link:   strings.TrimSpace(item.Link),
		})
	}
	return out, nil
}

// SummaryText formats headlines the way the prompt expects: a numbered
// title+date list, or a fixed "no news" line when nothing was found.
func (s *NewsService) SummaryText(ctx context.Context, query, timePeriod string, num int) (string, error) {
	articles, err := s.FetchHeadlines(ctx, query, timePeriod, num)
	if err != nil {
		return "", err
	}
	if len(articles) == 0 {
		return "No recent news found.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent news for %q (%s):\n\n", query, timePeriod)
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s\n   Date: %s\n\n", i+1, a.Title, a.Date)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// SerpAPI returns source either as a plain string or as an object with
// a name field, depending on the engine version.
func sourceName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Name)
	}
	return ""
}
