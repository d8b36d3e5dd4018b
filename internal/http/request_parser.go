package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"smartplates/internal/calendar"
	"smartplates/internal/core"
)

const (
	// HeaderUserID carries the acting user; the configured default user is
	// used when it is missing.
	HeaderUserID = "X-User-ID"

	maxBodyBytes = 1 << 20
)

var errMalformedBody = errors.New("malformed request body")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// View converts the params to a calendar view, rolling month overflow into
// the neighbouring year.
func (p MonthParams) View() calendar.View {
	return calendar.NewView(p.Year, time.Month(p.Month))
}

// ParseMonthParams extracts year and month from query parameters, using now
// as the default. Months outside 1..12 fall back to now's month.
func ParseMonthParams(query url.Values, now time.Time) MonthParams {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 && y < 10000 {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			params.Month = m
		}
	}

	return params
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to 1 MiB, and stores it for
// subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: %v", errMalformedBody, err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errMalformedBody, p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// Bool reads a checkbox-style flag: "true", "on", "1" and "yes" are true.
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// userIDFrom returns the acting user of a request.
func userIDFrom(r *http.Request, fallback string) string {
	if id := sanitizeInput(r.Header.Get(HeaderUserID)); id != "" && len(id) <= 128 {
		return id
	}
	return fallback
}

// MoveForm is the body of POST /api/meal-plans/move.
type MoveForm struct {
	FromDate string `validate:"required,datekey"`
	FromMeal string `validate:"required,mealtype"`
	Index    int    `validate:"gte=0"`
	ToDate   string `validate:"required,datekey"`
	ToMeal   string `validate:"required,mealtype"`
	Copy     bool
}

// GenerateForm is the body of POST /api/grocery-lists.
type GenerateForm struct {
	MealPlanID        string `validate:"required,max=128"`
	Name              string `validate:"max=200"`
	IncludeEstimates  bool
	CategorizeItems   bool
	MergeSimilarItems bool
	ExcludeStaples    bool
}

// ToggleForm is the body of POST /api/grocery-lists/{id}/toggle.
type ToggleForm struct {
	Name      string `validate:"required,max=200"`
	Purchased bool
}

func parseMoveForm(p *RequestBodyParser) (MoveForm, error) {
	f := MoveForm{
		FromDate: p.Get("from_date"),
		FromMeal: strings.ToLower(p.Get("from_meal")),
		ToDate:   p.Get("to_date"),
		ToMeal:   strings.ToLower(p.Get("to_meal")),
		Copy:     p.Bool("copy"),
	}
	if raw := p.Get("index"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return MoveForm{}, &fieldError{field: "index", msg: "index must be a whole number"}
		}
		f.Index = n
	}
	return f, validate.Struct(f)
}

func (f MoveForm) input() (calendar.SlotRef, calendar.Destination) {
	return calendar.SlotRef{Date: f.FromDate, MealType: core.MealType(f.FromMeal), Index: f.Index},
		calendar.Destination{Date: f.ToDate, MealType: core.MealType(f.ToMeal)}
}

func parseGenerateForm(p *RequestBodyParser) (GenerateForm, error) {
	f := GenerateForm{
		MealPlanID:        p.Get("meal_plan_id"),
		Name:              p.Get("name"),
		IncludeEstimates:  p.Bool("include_estimates"),
		CategorizeItems:   p.Bool("categorize_items"),
		MergeSimilarItems: p.Bool("merge_similar_items"),
		ExcludeStaples:    p.Bool("exclude_staples"),
	}
	return f, validate.Struct(f)
}

func (f GenerateForm) options() core.GroceryOptions {
	return core.GroceryOptions{
		IncludeEstimates:  f.IncludeEstimates,
		CategorizeItems:   f.CategorizeItems,
		MergeSimilarItems: f.MergeSimilarItems,
		ExcludeStaples:    f.ExcludeStaples,
	}
}

func parseToggleForm(p *RequestBodyParser) (ToggleForm, error) {
	f := ToggleForm{Name: p.Get("name"), Purchased: true}
	if p.Has("purchased") {
		f.Purchased = p.Bool("purchased")
	}
	return f, validate.Struct(f)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("datekey", func(fl validator.FieldLevel) bool {
		_, err := calendar.ParseDateKey(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("mealtype", func(fl validator.FieldLevel) bool {
		return core.MealType(fl.Field().String()).Valid()
	})
	return v
}

// fieldError is a single-field validation failure found before the
// validator runs.
type fieldError struct {
	field string
	msg   string
}

func (e *fieldError) Error() string { return e.msg }

// validationMessage formats validation errors for responses.
func validationMessage(err error) string {
	var fe *fieldError
	if errors.As(err, &fe) {
		return fe.msg
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "datekey":
			msgs = append(msgs, fmt.Sprintf("%s must be a YYYY-MM-DD date", field))
		case "mealtype":
			msgs = append(msgs, fmt.Sprintf("%s must be one of breakfast, lunch, dinner, snacks", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}
