package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/macrilege/gpt-enduser/internal/models"
	"github.com/macrilege/gpt-enduser/internal/oauth1"
)

var testCreds = oauth1.Credentials{
	ConsumerKey:    "ck",
	ConsumerSecret: "cs",
	AccessToken:    "at",
	AccessSecret:   "as",
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(WithCredentials(testCreds), WithBaseURL(baseURL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(); err != models.ErrMissingCreds {
		t.Errorf("expected ErrMissingCreds, got %v", err)
	}
	missing := testCreds
	missing.ConsumerSecret = ""
	if _, err := NewClient(WithCredentials(missing)); err != models.ErrMissingCreds {
		t.Errorf("expected ErrMissingCreds for partial creds, got %v", err)
	}
}

func TestPostSuccess(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1850","text":"hi"}}`))
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Post(context.Background(), "hi", "")

	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", res.StatusCode)
	}
	if !strings.Contains(res.Body, "1850") {
		t.Errorf("expected upstream body passthrough, got %q", res.Body)
	}
	if gotPath != "/2/tweets" {
		t.Errorf("expected /2/tweets, got %s", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got %s", gotContentType)
	}
	if !strings.HasPrefix(gotAuth, "OAuth ") {
		t.Errorf("expected OAuth authorization header, got %q", gotAuth)
	}
	for _, part := range []string{"oauth_consumer_key", "oauth_nonce", "oauth_signature=", "oauth_signature_method=\"HMAC-SHA1\"", "oauth_timestamp", "oauth_token", "oauth_version=\"1.0\""} {
		if !strings.Contains(gotAuth, part) {
			t.Errorf("authorization header missing %s: %q", part, gotAuth)
		}
	}
	if gotBody["text"] != "hi" {
		t.Errorf("expected text in body, got %v", gotBody)
	}
	if _, ok := gotBody["reply"]; ok {
		t.Error("non-reply post must not carry a reply object")
	}
}

func TestPostReplyBody(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"2"}}`))
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Post(context.Background(), "hi back", "1850")
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	reply, ok := gotBody["reply"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected reply object, got %v", gotBody)
	}
	if reply["in_reply_to_tweet_id"] != "1850" {
		t.Errorf("expected in_reply_to_tweet_id 1850, got %v", reply)
	}
}

func TestPostUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"title":"Too Many Requests"}`))
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Post(context.Background(), "hi", "")
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != models.ErrorKindUpstream {
		t.Errorf("expected upstream-error, got %s", res.ErrorKind)
	}
	if res.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", res.StatusCode)
	}
	if !strings.Contains(res.Body, "Too Many Requests") {
		t.Errorf("expected upstream body passthrough, got %q", res.Body)
	}
}

func TestPostTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(WithCredentials(testCreds), WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	res := c.Post(context.Background(), "hi", "")
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != models.ErrorKindTimeout {
		t.Errorf("expected timeout, got %s (%s)", res.ErrorKind, res.Detail)
	}
}

func TestPostTransportFailure(t *testing.T) {
	// Point at a closed server so the dial fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	res := newTestClient(t, srv.URL).Post(context.Background(), "hi", "")
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != models.ErrorKindUpstream {
		t.Errorf("expected upstream-error, got %s", res.ErrorKind)
	}
}

func TestMentions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/42/mentions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("since_id") != "100" {
			t.Errorf("expected since_id=100, got %s", r.URL.RawQuery)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Error("mentions request must be signed")
		}
		w.Write([]byte(`{"data":[{"id":"101","author_id":"7","text":"@bot hello"}]}`))
	}))
	defer srv.Close()

	mentions, err := newTestClient(t, srv.URL).Mentions(context.Background(), "42", "100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mentions) != 1 || mentions[0].ID != "101" || mentions[0].Text != "@bot hello" {
		t.Errorf("unexpected mentions: %+v", mentions)
	}
}

func TestMentionsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"Unauthorized"}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL).Mentions(context.Background(), "42", ""); err == nil {
		t.Fatal("expected error")
	}
}
