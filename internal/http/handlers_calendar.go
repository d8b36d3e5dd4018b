package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"smartplates/internal/calendar"
	"smartplates/internal/core"
	applog "smartplates/internal/log"
	"smartplates/internal/services"
)

// calendarPage is the data of the calendar.html partial.
type calendarPage struct {
	Grid  calendar.Grid
	Weeks [][]calendar.Cell
	View  calendar.View
	Prev  calendar.View
	Next  calendar.View
}

func (s *Server) calendarPage(ctx context.Context, userID string, view calendar.View) (calendarPage, error) {
	grid, err := s.planner.Month(ctx, userID, view)
	if err != nil {
		return calendarPage{}, err
	}
	return calendarPage{
		Grid:  grid,
		Weeks: grid.Weeks(),
		View:  view,
		Prev:  view.Navigate(-1),
		Next:  view.Navigate(1),
	}, nil
}

// viewFromQuery reads year, month and selected from the query string.
func (s *Server) viewFromQuery(r *http.Request) calendar.View {
	view := ParseMonthParams(r.URL.Query(), s.now()).View()
	view.Selected = selectedKey(r)
	return view
}

func (s *Server) renderCalendar(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, view calendar.View) {
	page, err := s.calendarPage(r.Context(), s.userID(r), view)
	if err != nil {
		writeError(w, r, err, applog.OpRender)
		return
	}
	s.render(w, r, b, "calendar.html", page)
}

func (s *Server) handleCalendarJSON(w http.ResponseWriter, r *http.Request) {
	grid, err := s.planner.Month(r.Context(), s.userID(r), s.viewFromQuery(r))
	if err != nil {
		writeError(w, r, err, applog.OpRender)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (s *Server) handleCalendarPartial(w http.ResponseWriter, r *http.Request) {
	s.renderCalendar(w, r, NewHTMXResponse(), s.viewFromQuery(r))
}

// handleCalendarNavigate shifts the displayed month by ?delta=, keeping the
// selected day.
func (s *Server) handleCalendarNavigate(w http.ResponseWriter, r *http.Request) {
	delta := 0
	if raw := r.URL.Query().Get("delta"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, &fieldError{field: "delta", msg: "delta must be a whole number"}, "navigate")
			return
		}
		delta = n
	}
	s.renderCalendar(w, r, NewHTMXResponse(), s.viewFromQuery(r).Navigate(delta))
}

// handleCalendarJump moves to the date typed in ?q=. Input that is not a
// recognised date is ignored and the current view is rendered again.
func (s *Server) handleCalendarJump(w http.ResponseWriter, r *http.Request) {
	view, ok := s.viewFromQuery(r).Jump(r.URL.Query().Get("q"))
	if !ok {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Jump input not recognised, keeping view",
			"query", sanitizeInput(r.URL.Query().Get("q")))
	}
	s.renderCalendar(w, r, NewHTMXResponse(), view)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planner.ListPlans(r.Context(), s.userID(r))
	if err != nil {
		writeError(w, r, err, "list_plans")
		return
	}
	if plans == nil {
		plans = []core.MealPlan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

// handleSavePlan stores a weekly plan sent as JSON.
func (s *Server) handleSavePlan(w http.ResponseWriter, r *http.Request) {
	var plan core.MealPlan
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&plan); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errMalformedBody, err), applog.OpSave)
		return
	}
	saved, err := s.planner.SavePlan(r.Context(), s.userID(r), plan)
	if err != nil {
		writeError(w, r, err, applog.OpSave)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type moveResponse struct {
	Moved   bool          `json:"moved"`
	Slot    core.MealSlot `json:"slot"`
	Changed []string      `json:"changedPlanIds"`
}

// handleMoveMeal moves or copies a meal. HTMX callers get the re-rendered
// month of the destination, or of year/month when the form carries them.
func (s *Server) handleMoveMeal(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err, applog.OpMove)
		return
	}
	form, err := parseMoveForm(p)
	if err != nil {
		writeError(w, r, err, applog.OpMove)
		return
	}
	source, dest := form.input()

	res, err := s.planner.Move(r.Context(), s.userID(r), services.MoveInput{
		Source:      source,
		Destination: dest,
		Copy:        form.Copy,
	})
	if err != nil {
		writeError(w, r, err, applog.OpMove)
		return
	}

	if !isHTMX(r) {
		ids := make([]string, 0, len(res.Changed))
		for _, plan := range res.Changed {
			ids = append(ids, plan.ID)
		}
		writeJSON(w, http.StatusOK, moveResponse{Moved: res.Moved, Slot: res.Slot, Changed: ids})
		return
	}

	view := moveView(p, form, s.now())
	b := NewHTMXResponse()
	switch {
	case !res.Moved:
		b.TriggerWarningNotification("That meal is no longer there, the calendar was refreshed")
	case form.Copy:
		b.TriggerSuccessNotification(fmt.Sprintf("Copied %s to %s", res.Slot.RecipeName, form.ToDate))
		b.TriggerCalendarChanged(view.Year, int(view.Month))
	default:
		b.TriggerSuccessNotification(fmt.Sprintf("Moved %s to %s", res.Slot.RecipeName, form.ToDate))
		b.TriggerCalendarChanged(view.Year, int(view.Month))
	}
	s.renderCalendar(w, r, b, view)
}

// moveView is the month to show after a move: the one the form says is on
// screen, otherwise the destination's month.
func moveView(p *RequestBodyParser, form MoveForm, now time.Time) calendar.View {
	var view calendar.View
	year, yerr := strconv.Atoi(p.Get("year"))
	month, merr := strconv.Atoi(p.Get("month"))
	if yerr == nil && merr == nil && month >= 1 && month <= 12 {
		view = calendar.NewView(year, time.Month(month))
	} else if t, err := calendar.ParseDateKey(form.ToDate); err == nil {
		view = calendar.NewView(t.Year(), t.Month())
	} else {
		view = calendar.NewView(now.Year(), now.Month())
	}
	if sel := p.Get("selected"); sel != "" {
		if _, err := calendar.ParseDateKey(sel); err == nil {
			view.Selected = sel
		}
	}
	return view
}
