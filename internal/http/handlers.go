package http

import (
	"context"
	"net/http"
	"time"

	"recurring/internal/core"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.config.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.config.Ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := ParsePatternFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	patterns, err := s.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPatternList(patterns))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summary(r.Context(), queryString(r.URL.Query(), "account_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleOverdue(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.svc.Overdue(r.Context(), queryString(r.URL.Query(), "account_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPatternList(patterns))
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := queryInt(q, "days", s.config.UpcomingDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	patterns, err := s.svc.Upcoming(r.Context(), queryString(q, "account_id"), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPatternList(patterns))
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	daysBack := s.config.DefaultDaysBack
	if req.DaysBack != nil {
		daysBack = *req.DaysBack
	}

	res, err := s.svc.Detect(r.Context(), req.AccountID, daysBack)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(req.AccountID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, id string) (core.RecurringPattern, error) {
		return s.svc.Ignore(ctx, id)
	})
}

func (s *Server) handleUnignore(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, id string) (core.RecurringPattern, error) {
		return s.svc.Unignore(ctx, id)
	})
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	text, err := req.normalized()
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.mutate(w, r, func(ctx context.Context, id string) (core.RecurringPattern, error) {
		return s.svc.AddNote(ctx, id, text)
	})
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Active == nil {
		writeError(w, r, invalidInput("active is required"))
		return
	}
	s.mutate(w, r, func(ctx context.Context, id string) (core.RecurringPattern, error) {
		return s.svc.SetActive(ctx, id, *req.Active)
	})
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (core.RecurringPattern, error)) {
	p, err := fn(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(p.AccountID)
	writeJSON(w, http.StatusOK, p)
}
