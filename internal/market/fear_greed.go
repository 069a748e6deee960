package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tkim9/upbit-autotrade/internal/logger"
)

const (
	fearGreedEndpoint       = "https://api.alternative.me/fng/"
	fearGreedHistoryLimit   = 30
	fearGreedErrorBackoff   = 2 * time.Minute
	fearGreedFallbackExpiry = 12 * time.Hour
)

// FearGreedPoint is one day of the alternative.me crypto fear & greed
// index.
type FearGreedPoint struct {
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
}

// FearGreedData is the cached index snapshot handed to the decision
// engine. History is most-recent-first as the API returns it.
type FearGreedData struct {
	Value           int
	Classification  string
	TimeUntilUpdate time.Duration
	History         []FearGreedPoint
	LastUpdate      time.Time
	Error           string
}

// FearGreedService caches the index and refreshes it no more often
// than the API's own update cadence.
type FearGreedService struct {
	endpoint string
	limit    int
	client   *http.Client

	mu         sync.RWMutex
	data       FearGreedData
	nextUpdate time.Time
	refreshMu  sync.Mutex
}

func NewFearGreedService() *FearGreedService {
	return &FearGreedService{
		endpoint: fearGreedEndpoint,
		limit:    fearGreedHistoryLimit,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Get returns the cached snapshot; ok is false before the first
// successful refresh.
func (s *FearGreedService) Get() (FearGreedData, bool) {
	if s == nil {
		return FearGreedData{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, !s.data.LastUpdate.IsZero()
}

// RefreshIfStale refreshes the cache when the API signalled its next
// update has passed. Concurrent callers collapse into one fetch.
func (s *FearGreedService) RefreshIfStale(ctx context.Context) {
	if s == nil {
		return
	}
	if s.fresh() {
		return
	}
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if s.fresh() {
		return
	}
	if err := s.refresh(ctx); err != nil {
		logger.Warnf("fear & greed refresh failed: %v", err)
	}
}

func (s *FearGreedService) fresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.data.LastUpdate.IsZero() && !s.nextUpdate.IsZero() && time.Now().Before(s.nextUpdate)
}

type fearGreedResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
		TimeUntilUpdate     string `json:"time_until_update"`
	} `json:"data"`
	Metadata struct {
		Error interface{} `json:"error"`
	} `json:"metadata"`
}

func (s *FearGreedService) refresh(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	url := fmt.Sprintf("%s?limit=%d", s.endpoint, s.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.setError(err)
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		s.setError(err)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		s.setError(err)
		return err
	}

	var payload fearGreedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.setError(err)
		return err
	}
	if payload.Metadata.Error != nil {
		err := fmt.Errorf("api error: %v", payload.Metadata.Error)
		s.setError(err)
		return err
	}

	points := make([]FearGreedPoint, 0, len(payload.Data))
	for _, item := range payload.Data {
		value, err := strconv.Atoi(strings.TrimSpace(item.Value))
		if err != nil {
			continue
		}
		var ts time.Time
		if raw := strings.TrimSpace(item.Timestamp); raw != "" {
			if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
				ts = time.Unix(sec, 0).UTC()
			}
		}
		points = append(points, FearGreedPoint{
			Value:          value,
			Classification: strings.TrimSpace(item.ValueClassification),
			Timestamp:      ts,
		})
	}
	if len(points) == 0 {
		err := fmt.Errorf("api data empty")
		s.setError(err)
		return err
	}

	var until time.Duration
	if raw := strings.TrimSpace(payload.Data[0].TimeUntilUpdate); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
			until = time.Duration(secs) * time.Second
		}
	}

	now := time.Now()
	next := now.Add(fearGreedFallbackExpiry)
	if until > 0 {
		next = now.Add(until)
	}
	s.setData(FearGreedData{
		Value:           points[0].Value,
		Classification:  points[0].Classification,
		TimeUntilUpdate: until,
		History:         points,
		LastUpdate:      now,
	}, next)
	return nil
}

func (s *FearGreedService) setError(err error) {
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.setData(FearGreedData{LastUpdate: now, Error: msg}, now.Add(fearGreedErrorBackoff))
}

func (s *FearGreedService) setData(data FearGreedData, next time.Time) {
	s.mu.Lock()
	s.data = data
	s.nextUpdate = next
	s.mu.Unlock()
}

// PromptText renders the history for the model prompt, one day per line.
func (d FearGreedData) PromptText() string {
	if d.Error != "" || len(d.History) == 0 {
		return "fear & greed index unavailable"
	}
	var b strings.Builder
	for _, p := range d.History {
		fmt.Fprintf(&b, "%s value=%d (%s)\n", p.Timestamp.Format("2006-01-02"), p.Value, p.Classification)
	}
	return strings.TrimRight(b.String(), "\n")
}
