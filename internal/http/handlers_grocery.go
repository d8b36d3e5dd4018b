package http

import (
	"fmt"
	"net/http"
	"strings"

	"smartplates/internal/core"
	"smartplates/internal/grocery"
	"smartplates/internal/grocery/export"
	applog "smartplates/internal/log"
	"smartplates/internal/services"
)

// groceryPage is the data of the grocery.html partial.
type groceryPage struct {
	List          core.GroceryList
	SheetsEnabled bool
}

type reportBody struct {
	Recipes  int `json:"recipes"`
	Resolved int `json:"resolved"`
	Empty    int `json:"empty"`
	Failed   int `json:"failed"`
}

func newReportBody(r grocery.Report) reportBody {
	return reportBody{Recipes: r.Recipes, Resolved: r.Resolved, Empty: r.Empty, Failed: r.Failed}
}

type generateResponse struct {
	List   core.GroceryList `json:"list"`
	Report reportBody       `json:"report"`
}

type toggleResponse struct {
	List    core.GroceryList `json:"list"`
	Changed bool             `json:"changed"`
}

func (s *Server) renderGrocery(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, list core.GroceryList) {
	s.render(w, r, b.TriggerGroceryUpdated(list.ID, list.ItemsCount, list.PurchasedCount), "grocery.html", groceryPage{
		List:          list,
		SheetsEnabled: s.grocery.SheetsEnabled(),
	})
}

// handleGenerateList builds (or rebuilds) the grocery list of a meal plan.
func (s *Server) handleGenerateList(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err, applog.OpGenerate)
		return
	}
	form, err := parseGenerateForm(p)
	if err != nil {
		writeError(w, r, err, applog.OpGenerate)
		return
	}

	list, report, err := s.grocery.Generate(r.Context(), services.GenerateRequest{
		MealPlanID: form.MealPlanID,
		UserID:     s.userID(r),
		Name:       form.Name,
		Options:    form.options(),
	})
	if err != nil {
		writeError(w, r, err, applog.OpGenerate)
		return
	}

	if !isHTMX(r) {
		writeJSON(w, http.StatusCreated, generateResponse{List: list, Report: newReportBody(report)})
		return
	}

	b := NewHTMXResponse().Status(http.StatusCreated)
	if report.Failed > 0 {
		b.TriggerWarningNotification(fmt.Sprintf("%d of %d recipes could not be loaded", report.Failed, report.Recipes))
	} else {
		b.TriggerSuccessNotification(fmt.Sprintf("Grocery list ready: %d items", list.ItemsCount))
	}
	s.renderGrocery(w, r, b, list)
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, err := s.grocery.Get(r.Context(), r.PathValue("id"), s.userID(r))
	if err != nil {
		writeError(w, r, err, "get_list")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGroceryPartial(w http.ResponseWriter, r *http.Request) {
	list, err := s.grocery.Get(r.Context(), r.PathValue("id"), s.userID(r))
	if err != nil {
		writeError(w, r, err, applog.OpRender)
		return
	}
	s.renderGrocery(w, r, NewHTMXResponse(), list)
}

// handleToggleItem sets the purchased flag of one item.
func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err, applog.OpToggle)
		return
	}
	form, err := parseToggleForm(p)
	if err != nil {
		writeError(w, r, err, applog.OpToggle)
		return
	}

	list, changed, err := s.grocery.Toggle(r.Context(), r.PathValue("id"), s.userID(r), form.Name, form.Purchased)
	if err != nil {
		writeError(w, r, err, applog.OpToggle)
		return
	}

	if !isHTMX(r) {
		writeJSON(w, http.StatusOK, toggleResponse{List: list, Changed: changed})
		return
	}
	b := NewHTMXResponse()
	if list.IsCompleted && changed {
		b.TriggerSuccessNotification("Everything on the list is purchased")
	}
	s.renderGrocery(w, r, b, list)
}

// handleExportList downloads a list as text or PDF, or writes it to Google
// Sheets with ?format=sheets.
func (s *Server) handleExportList(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	user := s.userID(r)
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	if raw == "sheets" {
		res, err := s.grocery.ExportToSheets(r.Context(), id, user)
		if err != nil {
			writeError(w, r, err, applog.OpExport)
			return
		}
		if isHTMX(r) {
			NewHTMXResponse().
				Status(http.StatusNoContent).
				TriggerSuccessNotification(fmt.Sprintf("Exported %d rows to sheet %q", res.Rows, res.SheetTitle)).
				Write(w)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	format, err := export.ParseFormat(raw)
	if err != nil {
		writeError(w, r, err, applog.OpExport)
		return
	}
	doc, err := s.grocery.Export(r.Context(), id, user, format)
	if err != nil {
		writeError(w, r, err, applog.OpExport)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}
