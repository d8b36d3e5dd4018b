package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"smartplates/internal/core"
	"smartplates/internal/grocery/export"
	applog "smartplates/internal/log"
	"smartplates/internal/metrics"
	"smartplates/internal/middleware/ratelimit"
	"smartplates/internal/middleware/security"
	"smartplates/internal/middleware/trace"
	"smartplates/internal/services"
	appweb "smartplates/web"
)

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies wires the server to the application services.
type Dependencies struct {
	Grocery            *services.GroceryService
	Planner            *services.PlannerService
	Metrics            *metrics.Metrics
	Logger             *applog.Logger
	DefaultUserID      string
	RateLimitPerMinute int
	Checks             []ReadinessCheck
	// Now defaults to time.Now
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template

	grocery       *services.GroceryService
	planner       *services.PlannerService
	metrics       *metrics.Metrics
	logger        *applog.Logger
	defaultUserID string
	checks        []ReadinessCheck

	limiter  *ratelimit.Limiter
	detector *security.Detector

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		grocery:       deps.Grocery,
		planner:       deps.Planner,
		metrics:       deps.Metrics,
		logger:        logger.WithComponent(applog.ComponentHTTP),
		defaultUserID: deps.DefaultUserID,
		checks:        deps.Checks,
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		started:       now(),
		now:           now,
	}
	s.detector = security.NewDetector(func(r *http.Request) {
		s.metrics.SuspiciousRequest()
		s.logger.WarnContext(r.Context(), "Suspicious request blocked",
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldUserAgent, r.UserAgent())
	})

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)
	post := func(h http.HandlerFunc) http.Handler { return limited(h) }

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /api/calendar", s.handleCalendarJSON)
	mux.HandleFunc("GET /ui/calendar", s.handleCalendarPartial)
	mux.HandleFunc("GET /ui/calendar/navigate", s.handleCalendarNavigate)
	mux.HandleFunc("GET /ui/calendar/jump", s.handleCalendarJump)

	mux.HandleFunc("GET /api/meal-plans", s.handleListPlans)
	mux.Handle("PUT /api/meal-plans", post(s.handleSavePlan))
	mux.Handle("POST /api/meal-plans/move", post(s.handleMoveMeal))

	mux.Handle("POST /api/grocery-lists", post(s.handleGenerateList))
	mux.HandleFunc("GET /api/grocery-lists/{id}", s.handleGetList)
	mux.Handle("POST /api/grocery-lists/{id}/toggle", post(s.handleToggleItem))
	mux.HandleFunc("GET /api/grocery-lists/{id}/export", s.handleExportList)
	mux.HandleFunc("GET /ui/grocery-lists/{id}", s.handleGroceryPartial)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.metrics)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(headers.Middleware(s.detector.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	if isHTMX(r) {
		TooManyRequestsError("Too many requests, try again shortly").Write(w)
		return
	}
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Status: http.StatusTooManyRequests})
}

func (s *Server) userID(r *http.Request) string {
	return userIDFrom(r, s.defaultUserID)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name)
		InternalServerError("rendering failed").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}

var templateFuncs = template.FuncMap{
	"slots": func(d core.DayMeals, m core.MealType) []core.MealSlot {
		return *d.Slots(m)
	},
	"sections": export.Sections,
	"monthNum": func(m time.Month) int { return int(m) },
	"mealTypes": func() []core.MealType {
		return core.MealTypes
	},
	"weekdays": func() []string {
		return []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	},
}
