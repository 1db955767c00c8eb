package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/straye-as/pipeline-api/internal/config"
	"go.uber.org/zap"
)

// Headers browsers must be able to send and read whatever the config lists:
// the request id for correlation and the export filename of the leaderboard.
var (
	requiredAllowedHeaders = []string{RequestIDHeader}
	requiredExposedHeaders = []string{RequestIDHeader, "Location", "Content-Disposition"}
)

// CORS returns the CORS middleware for the API
func CORS(cfg *config.CORSConfig, environment string, log *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   mergeHeaders(cfg.AllowedHeaders, requiredAllowedHeaders),
		ExposedHeaders:   mergeHeaders(cfg.ExposedHeaders, requiredExposedHeaders),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	devMode := environment == "development" || environment == "local" || environment == ""
	switch {
	case containsWildcard(cfg.AllowedOrigins):
		if !devMode {
			log.Warn("CORS allows any origin outside development", zap.String("environment", environment))
		}
		options.AllowOriginFunc = anyOrigin
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		log.Info("CORS configured with explicit origins", zap.Strings("origins", cfg.AllowedOrigins))
	case devMode:
		options.AllowOriginFunc = anyOrigin
		log.Info("CORS allows any origin in development")
	default:
		// an empty AllowedOrigins would mean "*" to the cors package
		options.AllowOriginFunc = func(*http.Request, string) bool { return false }
		log.Warn("CORS has no allowed origins, cross-origin requests are denied", zap.String("environment", environment))
	}

	return cors.Handler(options)
}

func anyOrigin(_ *http.Request, origin string) bool {
	return origin != ""
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// mergeHeaders appends the required headers missing from configured, ignoring case
func mergeHeaders(configured, required []string) []string {
	seen := make(map[string]struct{}, len(configured)+len(required))
	out := make([]string, 0, len(configured)+len(required))
	for _, h := range append(append([]string{}, configured...), required...) {
		key := http.CanonicalHeaderKey(h)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}
