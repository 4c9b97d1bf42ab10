// Package api provides the HTTP handlers for gpt-enduser endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/macrilege/gpt-enduser/internal/jobs"
	"github.com/macrilege/gpt-enduser/internal/models"
)

// postRequest is the body for POST /post: a manual, already-written post.
type postRequest struct {
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// generateRequest is the body for POST /generate: synthesize-and-post.
type generateRequest struct {
	Flavor string `json:"flavor"`
}

// statusResponse is the payload for GET /status.
type statusResponse struct {
	LastPostAt *time.Time `json:"last_post_at,omitempty"`
	Journal    []string   `json:"journal,omitempty"`
}

func (s *Server) postHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.postHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	result, err := s.gate.PostMessage(r.Context(), req.Text, req.ReplyTo)
	if err != nil {
		if errors.Is(err, models.ErrEmptyText) || errors.Is(err, models.ErrTextTooLong) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.postHandler: post failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to post message"))
		return
	}

	writePostResult(w, result)
}

func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.generateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	flavor := jobs.Flavor(req.Flavor)
	if !jobs.IsValidFlavor(flavor) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown flavor"))
		return
	}

	result, err := s.runner.RunFlavor(r.Context(), flavor)
	if err != nil {
		slog.Error("Server.generateHandler: run failed", "flavor", flavor, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate and post"))
		return
	}

	writePostResult(w, result)
}

// writePostResult maps a post outcome onto the envelope. Policy rejections
// are reported with HTTP 200 so operators can tell "we throttled ourselves"
// (rate-limited/duplicate in the payload) from "the platform rejected us"
// (502 with the upstream status and body attached).
func writePostResult(w http.ResponseWriter, result models.PostResult) {
	if result.OK {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message posted successfully", result))
		return
	}

	resp := models.Error(string(result.ErrorKind))
	if result.Detail != "" {
		resp.Message = result.Detail
	}
	resp.Result = result

	switch result.ErrorKind {
	case models.ErrorKindRateLimited, models.ErrorKindDuplicate:
		writeJSONResponse(w, http.StatusOK, resp)
	default:
		writeJSONResponse(w, http.StatusBadGateway, resp)
	}
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var status statusResponse

	last, ok, err := s.gate.LastPostAt(r.Context())
	if err != nil {
		slog.Error("Server.statusHandler: failed to read rate state", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read status"))
		return
	}
	if ok {
		status.LastPostAt = &last
	}

	entries, err := s.journal.Entries(r.Context())
	if err != nil {
		slog.Error("Server.statusHandler: failed to read journal", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read status"))
		return
	}
	status.Journal = entries

	writeJSONResponse(w, http.StatusOK, models.Success(status))
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
