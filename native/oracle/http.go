package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed polls a JSON endpoint that serves aggregator rounds:
//
//	{"roundId":"12","answer":"200000000000","startedAt":1700000000,"updatedAt":1700000000,"answeredInRound":"12"}
//
// GET <endpoint> returns the latest round and GET <endpoint>?round=<id> a
// historical one. Requests are throttled by a token bucket.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	decimals uint8
	timeout  time.Duration
	limiter  *rate.Limiter

	mu   sync.Mutex
	last *RoundData
}

// NewHTTPFeed constructs a feed. rps <= 0 disables throttling.
func NewHTTPFeed(client HTTPDoer, endpoint string, decimals uint8, rps float64, timeout time.Duration) (*HTTPFeed, error) {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		return nil, fmt.Errorf("http feed: endpoint required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &HTTPFeed{
		client:   client,
		endpoint: ep,
		decimals: decimals,
		timeout:  timeout,
		limiter:  rate.NewLimiter(limit, burst),
	}, nil
}

// Decimals reports the scale of returned answers.
func (f *HTTPFeed) Decimals() uint8 { return f.decimals }

// LatestRoundData fetches the current round. When the limiter is exhausted the
// last fetched round is served instead.
func (f *HTTPFeed) LatestRoundData() (RoundData, error) {
	if !f.limiter.Allow() {
		f.mu.Lock()
		cached := f.last
		f.mu.Unlock()
		if cached != nil {
			return cached.Clone(), nil
		}
	}
	round, err := f.fetch("")
	if err != nil {
		return RoundData{}, err
	}
	f.mu.Lock()
	cached := round.Clone()
	f.last = &cached
	f.mu.Unlock()
	return round, nil
}

// GetRoundData fetches a historical round.
func (f *HTTPFeed) GetRoundData(roundID uint64) (RoundData, error) {
	return f.fetch(strconv.FormatUint(roundID, 10))
}

type roundPayload struct {
	RoundID         json.Number `json:"roundId"`
	Answer          json.Number `json:"answer"`
	StartedAt       int64       `json:"startedAt"`
	UpdatedAt       int64       `json:"updatedAt"`
	AnsweredInRound json.Number `json:"answeredInRound"`
}

func (f *HTTPFeed) fetch(round string) (RoundData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return RoundData{}, err
	}
	if round != "" {
		q := req.URL.Query()
		q.Set("round", round)
		req.URL.RawQuery = q.Encode()
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return RoundData{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return RoundData{}, fmt.Errorf("%w: %s", ErrUnknownRound, round)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return RoundData{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var payload roundPayload
	if err := decoder.Decode(&payload); err != nil {
		return RoundData{}, fmt.Errorf("http feed: decode: %w", err)
	}
	answer, ok := new(big.Int).SetString(payload.Answer.String(), 10)
	if !ok {
		return RoundData{}, fmt.Errorf("http feed: invalid answer %q", payload.Answer)
	}
	roundID, err := strconv.ParseUint(payload.RoundID.String(), 10, 64)
	if err != nil {
		return RoundData{}, fmt.Errorf("http feed: invalid round id: %w", err)
	}
	answeredIn, err := strconv.ParseUint(payload.AnsweredInRound.String(), 10, 64)
	if err != nil {
		return RoundData{}, fmt.Errorf("http feed: invalid answeredInRound: %w", err)
	}
	return RoundData{
		RoundID:         roundID,
		Answer:          answer,
		StartedAt:       time.Unix(payload.StartedAt, 0).UTC(),
		UpdatedAt:       time.Unix(payload.UpdatedAt, 0).UTC(),
		AnsweredInRound: answeredIn,
	}, nil
}
