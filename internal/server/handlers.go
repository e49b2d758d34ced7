// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// validate is the reusable request validator.
var validate = validator.New()

// apiResponse is the wrapper every /api/v1 endpoint returns.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data}); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode API response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: false,
		Error:   &apiError{Code: code, Message: message},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// statusResponse reports the moving parts an operator checks first.
type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    *int   `json:"queue_depth,omitempty"`
	TwitchAuth    string `json:"twitch_auth,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if s.opts.Queue != nil {
		depth := s.opts.Queue.Len()
		resp.QueueDepth = &depth
	}
	if s.opts.Auth != nil {
		resp.TwitchAuth = string(s.opts.Auth.State())
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.opts.Goals.Snapshot())
}

// creditRequest is the body for manual goal credits, used to reconcile
// donations that arrived while the pipeline was down.
type creditRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (s *Server) handleGoalCredit(w http.ResponseWriter, r *http.Request) {
	platform, ok := s.platformParam(w, r)
	if !ok {
		return
	}

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "amount must be greater than zero")
		return
	}

	res, err := s.opts.Goals.AddDonation(r.Context(), platform, req.Amount)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "GOAL_CREDIT_FAILED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGoalReset(w http.ResponseWriter, r *http.Request) {
	platform, ok := s.platformParam(w, r)
	if !ok {
		return
	}
	if err := s.opts.Goals.Reset(r.Context(), platform); err != nil {
		respondError(w, http.StatusInternalServerError, "GOAL_RESET_FAILED", err.Error())
		return
	}
	logging.Info().Str("platform", string(platform)).Msg("Goal reset via control API")
	respondJSON(w, http.StatusOK, map[string]string{"platform": string(platform), "state": "reset"})
}

// platformParam resolves and authorizes the {platform} URL parameter.
func (s *Server) platformParam(w http.ResponseWriter, r *http.Request) (notification.Platform, bool) {
	platform, ok := notification.ParsePlatform(chi.URLParam(r, "platform"))
	if !ok {
		respondError(w, http.StatusBadRequest, "UNKNOWN_PLATFORM", "platform must be tiktok, twitch, or youtube")
		return "", false
	}
	if !s.opts.Goals.Tracks(platform) {
		respondError(w, http.StatusNotFound, "GOAL_NOT_TRACKED", "no goal configured for "+string(platform))
		return "", false
	}
	return platform, true
}
