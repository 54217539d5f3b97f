package main

import (
	"net/http"

	"setlist/internal/config"
	"setlist/internal/http/middleware"
	"setlist/internal/httpapi"
)

func newHTTPHandler(cfg *config.Config, svc httpapi.PlaylistService, health httpapi.HealthChecker) http.Handler {
	auth := httpapi.NewAuthenticator(cfg.Security.JWTSecret, cfg.Security.TrustUserHeader)
	routes := httpapi.New(svc, auth, health).Routes()

	// Preflight requests never match a route, so CORS wraps the router.
	return middleware.CORS(cfg.CORS.AllowedOrigins)(routes)
}
