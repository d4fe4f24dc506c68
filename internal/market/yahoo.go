package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooProvider implements Provider against the Yahoo Finance chart API.
// The chart API has no 4h interval; 4h candles are resampled from 1h.
type YahooProvider struct {
	baseURL string
	client  *http.Client
}

// NewYahooProvider creates a Yahoo Finance provider with the given request
// timeout.
func NewYahooProvider(timeout time.Duration) *YahooProvider {
	return &YahooProvider{
		baseURL: yahooBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewYahooProviderWithBaseURL is used by tests to point at a stub server.
func NewYahooProviderWithBaseURL(baseURL string, timeout time.Duration) *YahooProvider {
	return &YahooProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// chartResponse mirrors the subset of the chart API payload we consume.
// Quote arrays use pointers because Yahoo emits null for missing points.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetHistorical fetches candles for the interval (start, end].
func (p *YahooProvider) GetHistorical(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) ([]Candle, error) {
	fetchTF := tf
	if tf == TF4h {
		fetchTF = TF1h
	}

	candles, err := p.fetch(ctx, symbol, fetchTF, start, end)
	if err != nil {
		return nil, err
	}

	if tf == TF4h {
		candles = Resample(candles, TF4h)
	}

	// The vendor includes the bar at the window edge; the contract is a
	// half-open interval.
	out := candles[:0]
	for _, c := range candles {
		if c.Timestamp.After(start) && !c.Timestamp.After(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetLatest fetches the most recent candles for the timeframe.
func (p *YahooProvider) GetLatest(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error) {
	end := time.Now().UTC()
	start := end.Add(-5 * tf.Duration())
	return p.GetHistorical(ctx, symbol, tf, start, end)
}

// HealthCheck reports whether the vendor is reachable.
func (p *YahooProvider) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/USDJPY=X?range=1d&interval=1d", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

var yahooIntervals = map[Timeframe]string{
	TF5m:  "5m",
	TF15m: "15m",
	TF1h:  "60m",
	TF1d:  "1d",
}

func (p *YahooProvider) fetch(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) ([]Candle, error) {
	interval, ok := yahooIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported vendor interval for timeframe %s", tf)
	}

	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", interval)
	q.Set("includePrePost", "false")

	reqURL := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vendor response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendor returned status %d", resp.StatusCode)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("vendor response parse failed: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("vendor error: %s: %s", parsed.Chart.Error.Code, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		// Skip null points rather than fabricating prices.
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		candles = append(candles, Candle{
			Timestamp: time.Unix(ts, 0).UTC().Truncate(tf.Duration()),
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			Volume:    volume,
		})
	}
	return candles, nil
}

// Resample aggregates candles into the coarser timeframe by UTC bucket.
// Input must be ordered oldest first.
func Resample(candles []Candle, tf Timeframe) []Candle {
	if len(candles) == 0 {
		return nil
	}

	var out []Candle
	var current *Candle
	for _, c := range candles {
		bucket := c.Timestamp.Truncate(tf.Duration())
		if current == nil || !current.Timestamp.Equal(bucket) {
			if current != nil {
				out = append(out, *current)
			}
			agg := c
			agg.Timestamp = bucket
			current = &agg
			continue
		}
		if c.High > current.High {
			current.High = c.High
		}
		if c.Low < current.Low {
			current.Low = c.Low
		}
		current.Close = c.Close
		current.Volume += c.Volume
	}
	out = append(out, *current)
	return out
}
