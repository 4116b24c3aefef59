/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/belfry/internal/bell"
	"github.com/friendsincode/belfry/internal/clock"
	"github.com/friendsincode/belfry/internal/logbuffer"
	"github.com/friendsincode/belfry/internal/models"
	"github.com/friendsincode/belfry/internal/schedule"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type boundaryView struct {
	Time string    `json:"time"`
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

type statusView struct {
	Now         time.Time     `json:"now"`
	Period      string        `json:"period"`
	Previous    *boundaryView `json:"previous,omitempty"`
	Next        *boundaryView `json:"next,omitempty"`
	NextResync  *boundaryView `json:"next_resync,omitempty"`
	Checkpoints []string      `json:"checkpoints"`
	Boundaries  int           `json:"boundaries"`
}

// handleStatus reports the virtual time and the surrounding boundary
// events. Before the first boundary of a fresh schedule the period is
// whatever the previous day's last boundary left it as.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	boundaries := s.clock.Boundaries()
	checkpoints := s.clock.Checkpoints()

	times := make([]schedule.TimeOfDay, len(boundaries))
	for i, ev := range boundaries {
		times[i] = ev.Time
	}

	view := statusView{
		Now:        now,
		Period:     "unknown",
		Boundaries: len(boundaries),
	}

	if idx, at, ok := clock.PreviousOccurrence(now, times); ok {
		ev := boundaries[idx]
		view.Previous = &boundaryView{Time: ev.Time.String(), Kind: string(ev.Kind), At: at}
		view.Period = string(ev.Kind)
	}
	if idx, at, ok := clock.NextOccurrence(now, times); ok {
		ev := boundaries[idx]
		view.Next = &boundaryView{Time: ev.Time.String(), Kind: string(ev.Kind), At: at}
	}
	if idx, at, ok := clock.NextOccurrence(now, checkpoints); ok {
		view.NextResync = &boundaryView{Time: checkpoints[idx].String(), Kind: "resync", At: at}
	}
	for _, cp := range checkpoints {
		view.Checkpoints = append(view.Checkpoints, cp.String())
	}

	writeJSON(w, http.StatusOK, view)
}

type scheduleView struct {
	Info       schedule.SnapshotInfo `json:"info"`
	Lessons    []models.LessonRange  `json:"lessons"`
	Boundaries []boundaryListView    `json:"boundaries"`
}

type boundaryListView struct {
	Time string `json:"time"`
	Kind string `json:"kind"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	view := scheduleView{
		Info:    s.keeper.Info(),
		Lessons: s.keeper.Lessons(),
	}
	for _, ev := range s.clock.Boundaries() {
		view.Boundaries = append(view.Boundaries, boundaryListView{
			Time: ev.Time.String(),
			Kind: string(ev.Kind),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleScheduleICal(w http.ResponseWriter, r *http.Request) {
	result := schedule.ExportICal(s.keeper.HourRanges(), s.clock.Now())
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+result.Filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}

	q := s.db.WithContext(r.Context()).Order("fired_at DESC").Limit(limit)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var records []models.RingRecord
	if err := q.Find(&records).Error; err != nil {
		s.logger.Error().Err(err).Msg("history query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Limit:      queryInt(r, "limit", 100),
		Descending: true,
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":    s.logBuffer.Query(params),
		"stats":      s.logBuffer.Stats(),
		"components": s.logBuffer.GetComponents(),
	})
}

type ringRequest struct {
	Kind string `json:"kind"`
}

// handleRing fires a manual ring. Defaults to a test ring that leaves
// the period pins alone.
func (s *Server) handleRing(w http.ResponseWriter, r *http.Request) {
	req := ringRequest{Kind: bell.KindTest}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
	}
	switch req.Kind {
	case bell.KindWork, bell.KindBreak, bell.KindTest:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be work, break, or test"})
		return
	}

	if err := s.ringer.Ring(r.Context(), req.Kind, "manual"); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rung", "kind": req.Kind})
}

// handleResync forces the checkpoint routine outside its schedule.
func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	if s.resync == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "resync not configured"})
		return
	}
	if err := s.resync(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "resynced",
		"now":    s.clock.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return def
}
