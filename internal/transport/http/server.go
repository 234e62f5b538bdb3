package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"andromeda-healthcare/internal/bootstrap"
	"andromeda-healthcare/internal/metrics"
	"andromeda-healthcare/internal/transport/http/handler"
	"andromeda-healthcare/internal/transport/http/middleware"
)

// Route binds one method and path to its handler chain.
type Route struct {
	Method   string
	Path     string
	Handlers []gin.HandlerFunc
}

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// ValidateRoutes rejects a table gin would otherwise panic on or silently
// accept: unknown methods, relative paths, empty chains and duplicates.
func ValidateRoutes(routes []Route) error {
	seen := make(map[string]bool, len(routes))
	for i, r := range routes {
		if !allowedMethods[r.Method] {
			return fmt.Errorf("route %d: unsupported method %q", i, r.Method)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("route %d: path %q must start with /", i, r.Path)
		}
		if len(r.Handlers) == 0 {
			return fmt.Errorf("route %s %s: no handlers", r.Method, r.Path)
		}
		for _, h := range r.Handlers {
			if h == nil {
				return fmt.Errorf("route %s %s: nil handler", r.Method, r.Path)
			}
		}
		key := r.Method + " " + r.Path
		if seen[key] {
			return fmt.Errorf("route %s registered twice", key)
		}
		seen[key] = true
	}
	return nil
}

func Routes(auth *handler.AuthHandler, health *handler.HealthHandler, metricsHandler http.Handler) []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/api/auth/register", Handlers: []gin.HandlerFunc{auth.Register}},
		{Method: http.MethodPost, Path: "/api/auth/login", Handlers: []gin.HandlerFunc{auth.Login}},
		{Method: http.MethodGet, Path: "/healthz", Handlers: []gin.HandlerFunc{health.Check}},
		{Method: http.MethodGet, Path: "/metrics", Handlers: []gin.HandlerFunc{gin.WrapH(metricsHandler)}},
	}
}

func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(
		middleware.Recovery(app.Logger),
		middleware.RequestID(),
		middleware.AccessLog(app.Logger),
		app.Metrics.Middleware(),
	)
	if origins := app.Config.HTTP.CORSAllowedOrigins; len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID},
			ExposeHeaders: []string{middleware.HeaderRequestID},
			MaxAge:        12 * time.Hour,
		}))
	}

	authService, err := app.AuthService()
	if err != nil {
		return nil, err
	}
	authHandler := handler.NewAuthHandler(authService, app.Config.Auth.ErrorMode, app.Metrics, app.Logger)

	checks := make(map[string]handler.HealthCheck)
	for name, check := range app.HealthChecks() {
		checks[name] = check
	}
	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, checks)

	routes := Routes(authHandler, healthHandler, metrics.Handler(app.Registry))
	if err := ValidateRoutes(routes); err != nil {
		return nil, fmt.Errorf("invalid route table: %w", err)
	}
	for _, r := range routes {
		router.Handle(r.Method, r.Path, r.Handlers...)
	}

	return router, nil
}
