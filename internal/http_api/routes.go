package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/api/v1/stats", s.stats)
}
