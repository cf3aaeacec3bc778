package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"mirror/internal/config"

	_ "mirror/docs"
)

const swaggerIndex = "/swagger/index.html"

// RegisterSwaggerRoutes mounts the API docs UI when cfg allows it. In
// production the paths stay unrouted unless SWAGGER_ENABLED is set.
func RegisterSwaggerRoutes(r chi.Router, cfg *config.Config) bool {
	if !cfg.ServeSwagger() {
		return false
	}

	// The mounted router sees both /swagger and /swagger/ as "/".
	r.Route("/swagger", func(r chi.Router) {
		r.Method(http.MethodGet, "/", http.RedirectHandler(swaggerIndex, http.StatusMovedPermanently))
		r.Get("/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
			httpSwagger.DeepLinking(false),
			httpSwagger.DocExpansion("none"),
			httpSwagger.PersistAuthorization(true),
		))
	})
	return true
}
