// Package feeds fetches external data (news, crypto prices, weather) and
// reduces each JSON payload to a short display string for prompt templating.
//
// Reduced strings are cached in the key-value store under per-source
// freshness TTLs, so scheduled jobs re-use recent data instead of hammering
// the upstream APIs.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/macrilege/gpt-enduser/internal/kv"
	"github.com/macrilege/gpt-enduser/internal/metrics"
)

// Cache freshness windows per source.
const (
	NewsTTL    = 30 * time.Minute
	CryptoTTL  = 5 * time.Minute
	WeatherTTL = time.Hour

	fetchTimeout = 10 * time.Second
	keyPrefix    = "feed:"
	maxHeadlines = 5
)

// Default upstream endpoints, overridable via options.
const (
	DefaultNewsURL    = "https://hn.algolia.com/api/v1/search?tags=front_page"
	DefaultCryptoURL  = "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin,ethereum&vs_currencies=usd"
	DefaultWeatherURL = "https://api.open-meteo.com/v1/forecast?latitude=40.71&longitude=-74.01&current_weather=true"
)

// Opts holds feed service configuration.
type Opts struct {
	NewsURL    string
	CryptoURL  string
	WeatherURL string
	HTTPClient *http.Client
}

// Option configures the feed service.
type Option func(*Opts)

// WithNewsURL overrides the news endpoint.
func WithNewsURL(u string) Option { return func(o *Opts) { o.NewsURL = u } }

// WithCryptoURL overrides the crypto price endpoint.
func WithCryptoURL(u string) Option { return func(o *Opts) { o.CryptoURL = u } }

// WithWeatherURL overrides the weather endpoint.
func WithWeatherURL(u string) Option { return func(o *Opts) { o.WeatherURL = u } }

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(o *Opts) { o.HTTPClient = c } }

// Service fetches and caches external data.
type Service struct {
	store      kv.Store
	httpClient *http.Client
	newsURL    string
	cryptoURL  string
	weatherURL string
}

// NewService creates a feed service over the given store.
func NewService(store kv.Store, opts ...Option) *Service {
	cfg := Opts{
		NewsURL:    DefaultNewsURL,
		CryptoURL:  DefaultCryptoURL,
		WeatherURL: DefaultWeatherURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	return &Service{
		store:      store,
		httpClient: httpClient,
		newsURL:    cfg.NewsURL,
		cryptoURL:  cfg.CryptoURL,
		weatherURL: cfg.WeatherURL,
	}
}

// News returns recent headlines, one per line.
func (s *Service) News(ctx context.Context) (string, error) {
	return s.cached(ctx, "news", NewsTTL, s.fetchNews)
}

// Crypto returns current coin prices as a short summary line.
func (s *Service) Crypto(ctx context.Context) (string, error) {
	return s.cached(ctx, "crypto", CryptoTTL, s.fetchCrypto)
}

// Weather returns current conditions as a short summary line.
func (s *Service) Weather(ctx context.Context) (string, error) {
	return s.cached(ctx, "weather", WeatherTTL, s.fetchWeather)
}

// cached serves source from the store when fresh, otherwise fetches, reduces,
// and caches the result under the source's TTL.
func (s *Service) cached(ctx context.Context, source string, ttl time.Duration, fetch func(ctx context.Context) (string, error)) (string, error) {
	key := keyPrefix + source
	if val, ok, err := s.store.Get(ctx, key); err != nil {
		return "", fmt.Errorf("read %s cache: %w", source, err)
	} else if ok {
		metrics.FeedFetchesTotal.WithLabelValues(source, "hit").Inc()
		return val, nil
	}

	val, err := fetch(ctx)
	if err != nil {
		metrics.FeedFetchesTotal.WithLabelValues(source, "error").Inc()
		return "", err
	}
	metrics.FeedFetchesTotal.WithLabelValues(source, "miss").Inc()

	if err := s.store.Put(ctx, key, val, ttl); err != nil {
		// A cache write failure should not block the post pipeline.
		slog.Warn("Service.cached: failed to cache feed", "source", source, "error", err)
	}
	return val, nil
}

type newsResponse struct {
	Hits []struct {
		Title string `json:"title"`
	} `json:"hits"`
}

func (s *Service) fetchNews(ctx context.Context) (string, error) {
	body, err := s.getJSON(ctx, s.newsURL)
	if err != nil {
		return "", fmt.Errorf("fetch news: %w", err)
	}
	var parsed newsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode news: %w", err)
	}
	var lines []string
	for _, hit := range parsed.Hits {
		if hit.Title == "" {
			continue
		}
		lines = append(lines, "- "+hit.Title)
		if len(lines) == maxHeadlines {
			break
		}
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("news feed returned no headlines")
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) fetchCrypto(ctx context.Context) (string, error) {
	body, err := s.getJSON(ctx, s.cryptoURL)
	if err != nil {
		return "", fmt.Errorf("fetch crypto prices: %w", err)
	}
	var parsed map[string]map[string]float64
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode crypto prices: %w", err)
	}
	if len(parsed) == 0 {
		return "", fmt.Errorf("crypto feed returned no prices")
	}
	var parts []string
	for _, coin := range []string{"bitcoin", "ethereum"} {
		if prices, ok := parsed[coin]; ok {
			if usd, ok := prices["usd"]; ok {
				parts = append(parts, fmt.Sprintf("%s: $%.0f", coin, usd))
			}
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("crypto feed missing usd prices")
	}
	return strings.Join(parts, ", "), nil
}

type weatherResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		Windspeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

func (s *Service) fetchWeather(ctx context.Context) (string, error) {
	body, err := s.getJSON(ctx, s.weatherURL)
	if err != nil {
		return "", fmt.Errorf("fetch weather: %w", err)
	}
	var parsed weatherResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode weather: %w", err)
	}
	cw := parsed.CurrentWeather
	return fmt.Sprintf("%.1f°C, wind %.0f km/h, code %d", cw.Temperature, cw.Windspeed, cw.WeatherCode), nil
}

func (s *Service) getJSON(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
