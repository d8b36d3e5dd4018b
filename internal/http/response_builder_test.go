package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"smartplates/internal/core"
	"smartplates/internal/grocery/export"
	"smartplates/internal/services"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		BodyHTML("<p>ok</p>").
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Body.String() != "<p>ok</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("HX-Trigger should be empty without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerCalendarChanged(2025, 9).
		TriggerGroceryUpdated("list-1", 12, 3).
		TriggerSuccessNotification("Moved Pasta").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}

	expectedParts := []string{
		`"calendar:changed"`,
		`"grocery:updated"`,
		`"show-notification"`,
		`"year":2025`,
		`"month":9`,
		`"id":"list-1"`,
		`"items":12`,
		`"purchased":3`,
		`"type":"success"`,
	}
	for _, part := range expectedParts {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_WarningNotification(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().TriggerWarningNotification("Date not recognised").Write(w)

	trigger := w.Header().Get("HX-Trigger")
	for _, part := range []string{`"type":"warning"`, `"duration":4000`, `Date not recognised`} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestErrorResponse_EscapesMessage(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError(`<script>alert("x")</script>`).Write(w)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "<script>") {
		t.Errorf("message not escaped: %s", w.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("get: %w", core.ErrNotFound), http.StatusNotFound},
		{"item not found", core.ErrItemNotFound, http.StatusNotFound},
		{"malformed", fmt.Errorf("%w: eof", errMalformedBody), http.StatusBadRequest},
		{"meal type", core.ErrInvalidMealType, http.StatusUnprocessableEntity},
		{"empty plan id", core.ErrEmptyPlanID, http.StatusUnprocessableEntity},
		{"format", fmt.Errorf("%w: %q", export.ErrUnknownFormat, "doc"), http.StatusUnprocessableEntity},
		{"field", &fieldError{field: "index", msg: "bad"}, http.StatusUnprocessableEntity},
		{"validator", validate.Struct(ToggleForm{}), http.StatusUnprocessableEntity},
		{"sheets", services.ErrSheetsDisabled, http.StatusNotImplemented},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteError_JSONHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/grocery-lists/x", nil)

	writeError(w, r, errors.New("sqlite: database disk image is malformed"), "get_list")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Status code = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "sqlite") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestWriteError_HTMXFragment(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/meal-plans/move", nil)
	r.Header.Set("HX-Request", "true")

	writeError(w, r, core.ErrInvalidMealType, "move")

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Status code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `class="error"`) {
		t.Errorf("expected HTML error fragment, got %s", w.Body.String())
	}
	if !strings.Contains(w.Header().Get("HX-Trigger"), `"type":"error"`) {
		t.Errorf("expected error notification trigger")
	}
}
