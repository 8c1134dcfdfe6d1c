package cors

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Options describes the CORS policy of the ledger API.
type Options struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

// New builds the CORS middleware. With no origins configured every origin is
// admitted as "*" and credentials are refused; otherwise only the listed
// origins are echoed back and may send credentials.
func New(opts Options) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		// Exports are downloaded by the dashboard and named from Content-Disposition.
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:        opts.MaxAge,
	}

	origins := normalizeOrigins(opts.AllowedOrigins)
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func normalizeOrigins(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, origin := range raw {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
