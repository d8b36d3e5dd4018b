// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing HTMX responses
// and the mapping from domain errors to status codes shared by the JSON
// and HTML handlers.

package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-playground/validator/v10"

	"smartplates/internal/core"
	"smartplates/internal/grocery/export"
	applog "smartplates/internal/log"
	"smartplates/internal/services"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
// It encapsulates the construction of HX-Trigger headers and response bodies.
type HTMXResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data interface{}) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerCalendarChanged tells the page that the month grid of year/month
// must be reloaded.
func (b *HTMXResponseBuilder) TriggerCalendarChanged(year, month int) *HTMXResponseBuilder {
	return b.Trigger("calendar:changed", map[string]int{"year": year, "month": month})
}

// TriggerGroceryUpdated announces a new state of a grocery list.
func (b *HTMXResponseBuilder) TriggerGroceryUpdated(listID string, items, purchased int) *HTMXResponseBuilder {
	return b.Trigger("grocery:updated", map[string]interface{}{
		"id":        listID,
		"items":     items,
		"purchased": purchased,
	})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification adds a show-notification trigger with the specified parameters.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]interface{}{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerWarningNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationWarning, message, 4000)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped for safety.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + escapedMsg + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func TooManyRequestsError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	var fe *fieldError
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.As(err, &verrs), errors.As(err, &fe),
		errors.Is(err, core.ErrInvalidMealType),
		errors.Is(err, core.ErrEmptyPlanID),
		errors.Is(err, core.ErrEmptyUserID),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrSheetsDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is what a client may see for err. Internal failures are
// not described.
func publicMessage(err error, status int) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusUnprocessableEntity:
		return validationMessage(err)
	case http.StatusNotFound:
		if errors.Is(err, core.ErrItemNotFound) {
			return "grocery item not found"
		}
		return "not found"
	case http.StatusBadRequest:
		return "malformed request body"
	}
	return err.Error()
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as JSON, or as an HTML fragment for HTMX requests,
// and logs server-side failures.
func writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, operation, nil)
	} else {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			applog.FieldError, err,
			applog.FieldStatusCode, status,
			applog.FieldOperation, operation)
	}

	msg := publicMessage(err, status)
	if isHTMX(r) {
		ErrorResponse(status, msg).TriggerNotification(NotificationError, msg, 5000).Write(w)
		return
	}
	writeJSON(w, status, errorBody{Error: msg, Status: status})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
