package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/macrilege/gpt-enduser/internal/feeds"
	"github.com/macrilege/gpt-enduser/internal/journal"
	"github.com/macrilege/gpt-enduser/internal/jobs"
	"github.com/macrilege/gpt-enduser/internal/kv"
	"github.com/macrilege/gpt-enduser/internal/post"
	"github.com/macrilege/gpt-enduser/internal/testutil"
)

// fakeGenerator returns fixed text for /generate tests.
type fakeGenerator struct {
	text string
}

func (f *fakeGenerator) GeneratePost(ctx context.Context, system, user string) (string, error) {
	return f.text, nil
}

// newTestServer builds a server over in-memory dependencies and a fake
// poster, plus an httptest news feed for /generate.
func newTestServer(t *testing.T, poster *testutil.FakePoster) *Server {
	t.Helper()
	store := kv.NewMemoryStore()
	// Zero min interval keeps the rate limit out of the way so the
	// handlers' policy mapping can be exercised deterministically.
	gate := post.NewGatekeeper(store, poster, post.WithMinInterval(0))
	jr := journal.New(store)

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":[{"title":"A headline"}]}`))
	}))
	t.Cleanup(feedSrv.Close)

	feedSvc := feeds.NewService(store, feeds.WithNewsURL(feedSrv.URL))
	runner := jobs.NewRunner(store, feedSvc, jr, &fakeGenerator{text: "a generated post"}, gate, nil, "")
	return NewServer(gate, runner, jr)
}

func TestPostHandlerSuccess(t *testing.T) {
	poster := testutil.NewFakePoster()
	srv := newTestServer(t, poster)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/post", map[string]string{"text": "hello world"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "post success")
	testutil.AssertJSONResponse(t, rr, "ok")
	if poster.Calls != 1 {
		t.Errorf("expected one send, got %d", poster.Calls)
	}
}

func TestPostHandlerInvalidJSON(t *testing.T) {
	srv := newTestServer(t, testutil.NewFakePoster())

	req := httptest.NewRequest(http.MethodPost, "/post", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestPostHandlerEmptyText(t *testing.T) {
	poster := testutil.NewFakePoster()
	srv := newTestServer(t, poster)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/post", map[string]string{"text": ""})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty text")
	if poster.Calls != 0 {
		t.Errorf("invalid text must not reach the network, calls=%d", poster.Calls)
	}
}

func TestPostHandlerPolicyRejection(t *testing.T) {
	poster := testutil.NewFakePoster()
	srv := newTestServer(t, poster)

	// First post succeeds, immediate identical retry is a duplicate.
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/post", map[string]string{"text": "hello"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "first post")

	req = testutil.CreateHTTPRequest(t, http.MethodPost, "/post", map[string]string{"text": "hello"})
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	// Policy rejections are HTTP 200 with an error envelope.
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "duplicate rejection")
	resp := testutil.AssertJSONResponse(t, rr, "error")
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected result payload, got %v", resp)
	}
	if result["error_kind"] != "duplicate" {
		t.Errorf("expected duplicate error kind, got %v", result["error_kind"])
	}
	if poster.Calls != 1 {
		t.Errorf("duplicate must not reach the network, calls=%d", poster.Calls)
	}
}

func TestPostHandlerUpstreamFailure(t *testing.T) {
	poster := testutil.NewFakePoster()
	poster.Result.OK = false
	poster.Result.StatusCode = http.StatusServiceUnavailable
	poster.Result.Body = `{"title":"down"}`
	poster.Result.ErrorKind = "upstream-error"
	srv := newTestServer(t, poster)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/post", map[string]string{"text": "hello"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "upstream failure")
	resp := testutil.AssertJSONResponse(t, rr, "error")
	result := resp["result"].(map[string]interface{})
	if result["status_code"] != float64(http.StatusServiceUnavailable) {
		t.Errorf("expected upstream status passthrough, got %v", result["status_code"])
	}
}

func TestGenerateHandler(t *testing.T) {
	poster := testutil.NewFakePoster()
	srv := newTestServer(t, poster)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/generate", map[string]string{"flavor": "news"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "generate")
	testutil.AssertJSONResponse(t, rr, "ok")
	if poster.LastText != "a generated post" {
		t.Errorf("expected generated text to be posted, got %q", poster.LastText)
	}
}

func TestGenerateHandlerUnknownFlavor(t *testing.T) {
	srv := newTestServer(t, testutil.NewFakePoster())

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/generate", map[string]string{"flavor": "horoscope"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "unknown flavor")
}

func TestStatusHandler(t *testing.T) {
	poster := testutil.NewFakePoster()
	srv := newTestServer(t, poster)

	// Before any post: no last_post_at.
	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "status")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if _, present := result["last_post_at"]; present {
		t.Error("last_post_at should be omitted before any post")
	}

	// After a post it appears.
	postReq := testutil.CreateHTTPRequest(t, http.MethodPost, "/post", map[string]string{"text": "hello"})
	srv.Handler().ServeHTTP(httptest.NewRecorder(), postReq)

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/status", nil))
	resp = testutil.AssertJSONResponse(t, rr, "ok")
	result = resp["result"].(map[string]interface{})
	if _, present := result["last_post_at"]; !present {
		t.Error("last_post_at should be present after a post")
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, testutil.NewFakePoster())
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/healthz", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "healthz")
}

func TestAdminDashboard(t *testing.T) {
	srv := newTestServer(t, testutil.NewFakePoster())
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/admin", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "admin")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML, got %s", ct)
	}
	if !strings.Contains(rr.Body.String(), "gpt-enduser") {
		t.Error("dashboard should render the service name")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testutil.NewFakePoster())
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/metrics", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "metrics")
}
