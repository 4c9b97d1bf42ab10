// Package testutil provides common test utilities and helpers for gpt-enduser tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/macrilege/gpt-enduser/internal/models"
)

// FakePoster implements the gatekeeper's Poster interface with a canned
// result, recording whether the network layer was reached.
type FakePoster struct {
	Calls     int
	LastText  string
	LastReply string
	Result    models.PostResult
}

// NewFakePoster returns a poster that reports success.
func NewFakePoster() *FakePoster {
	return &FakePoster{Result: models.PostResult{OK: true, StatusCode: http.StatusCreated, Body: `{"data":{"id":"1"}}`}}
}

func (f *FakePoster) Post(ctx context.Context, text, replyTargetID string) models.PostResult {
	f.Calls++
	f.LastText = text
	f.LastReply = replyTargetID
	return f.Result
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
