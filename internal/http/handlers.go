package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"smartplates/internal/calendar"
	"smartplates/internal/core"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for _, c := range s.checks {
		if ctx.Err() != nil {
			checks[c.Name] = "timeout"
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}
	checks["sheets"] = "disabled"
	if s.grocery.SheetsEnabled() {
		checks["sheets"] = "enabled"
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

type indexPage struct {
	Calendar      calendarPage
	Plans         []core.MealPlan
	SheetsEnabled bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	user := s.userID(r)
	params := ParseMonthParams(r.URL.Query(), s.now())
	view := params.View()
	view.Selected = selectedKey(r)

	page, err := s.calendarPage(r.Context(), user, view)
	if err != nil {
		writeError(w, r, err, "index")
		return
	}
	plans, err := s.planner.ListPlans(r.Context(), user)
	if err != nil {
		writeError(w, r, err, "index")
		return
	}
	s.render(w, r, NewHTMXResponse(), "index.html", indexPage{
		Calendar:      page,
		Plans:         plans,
		SheetsEnabled: s.grocery.SheetsEnabled(),
	})
}

// selectedKey returns the selected date key of the query, empty when absent
// or not a date.
func selectedKey(r *http.Request) string {
	key := r.URL.Query().Get("selected")
	if _, err := calendar.ParseDateKey(key); err != nil {
		return ""
	}
	return key
}
