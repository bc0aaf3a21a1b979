package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/event"
)

type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	TimerCount    int    `json:"timer_count"`
}

type timersResponse struct {
	Timers []int16 `json:"timers"`
}

type injectEventRequest struct {
	Topic    string `json:"topic"`
	Priority *uint8 `json:"priority,omitempty"`
	Text     string `json:"text,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:        s.rt.StatusString(),
		UptimeSeconds: int64(s.rt.Uptime() / time.Second),
		TimerCount:    len(s.rt.Timers()),
	})
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	timers := s.rt.Timers()
	if timers == nil {
		timers = []int16{}
	}
	writeJSON(w, http.StatusOK, timersResponse{Timers: timers})
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if s.plugins == nil {
		writeError(w, http.StatusNotFound, "plugin manager not available")
		return
	}
	writeJSON(w, http.StatusOK, s.plugins.Describe())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotFound, "notifications not available")
		return
	}
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an integer")
			return
		}
		since = parsed
	}
	writeJSON(w, http.StatusOK, s.hub.SnapshotSince(since))
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.jrnl == nil {
		writeError(w, http.StatusNotFound, "journal not enabled")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	recs, err := s.jrnl.RecentEvents(ctx, limit)
	if err != nil {
		s.logger.Error("journal query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "journal query failed")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleInjectEvent(w http.ResponseWriter, r *http.Request) {
	var req injectEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	topic, err := event.ParseTopic(req.Topic)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var args event.Args = event.EmptyArgs{}
	if req.Text != "" {
		args = event.NewTextArgs(req.Text)
	}

	if req.Priority != nil {
		s.rt.GenerateWithPriority(topic, *req.Priority, args)
	} else {
		s.rt.Generate(topic, args)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
