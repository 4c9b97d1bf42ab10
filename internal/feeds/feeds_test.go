package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/macrilege/gpt-enduser/internal/kv"
)

func TestNewsReducedAndCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"hits":[{"title":"First story"},{"title":"Second story"},{"title":""},{"title":"Third"}]}`))
	}))
	defer srv.Close()

	s := NewService(kv.NewMemoryStore(), WithNewsURL(srv.URL))

	got, err := s.News(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "- First story") || !strings.Contains(got, "- Third") {
		t.Errorf("unexpected reduction: %q", got)
	}
	if strings.Contains(got, "- \n") {
		t.Errorf("empty titles should be dropped: %q", got)
	}

	// Second read is served from cache.
	if _, err := s.News(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one upstream fetch, got %d", calls)
	}
}

func TestNewsHeadlineCap(t *testing.T) {
	var titles []string
	for i := 0; i < 10; i++ {
		titles = append(titles, `{"title":"story"}`)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":[` + strings.Join(titles, ",") + `]}`))
	}))
	defer srv.Close()

	s := NewService(kv.NewMemoryStore(), WithNewsURL(srv.URL))
	got, err := s.News(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := strings.Count(got, "- story"); n != maxHeadlines {
		t.Errorf("expected %d headlines, got %d", maxHeadlines, n)
	}
}

func TestCrypto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"usd":64250.12},"ethereum":{"usd":3120.55}}`))
	}))
	defer srv.Close()

	s := NewService(kv.NewMemoryStore(), WithCryptoURL(srv.URL))
	got, err := s.Crypto(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "bitcoin: $64250") || !strings.Contains(got, "ethereum: $3121") {
		t.Errorf("unexpected reduction: %q", got)
	}
}

func TestWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current_weather":{"temperature":12.3,"windspeed":18.0,"weathercode":61}}`))
	}))
	defer srv.Close()

	s := NewService(kv.NewMemoryStore(), WithWeatherURL(srv.URL))
	got, err := s.Weather(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "12.3°C") || !strings.Contains(got, "wind 18") {
		t.Errorf("unexpected reduction: %q", got)
	}
}

func TestUpstreamErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewService(kv.NewMemoryStore(), WithNewsURL(srv.URL))
	if _, err := s.News(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmptyFeedIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":[]}`))
	}))
	defer srv.Close()

	s := NewService(kv.NewMemoryStore(), WithNewsURL(srv.URL))
	if _, err := s.News(context.Background()); err == nil {
		t.Fatal("expected error for empty feed")
	}
}
