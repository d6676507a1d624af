package middleware

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows a comma-separated SAGACORE_CORS_ORIGINS override; with
// nothing configured it falls back to a localhost dev-origin set, since
// the admin API is assumed to run behind an operator's own frontend
// during local development.
func CORS(allowOrigins string) gin.HandlerFunc {
	origins := []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if strings.TrimSpace(allowOrigins) != "" {
		origins = nil
		for _, o := range strings.Split(allowOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	})
}
