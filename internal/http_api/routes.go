package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.POST("/paywalls", s.createPaywall)
	s.router.GET("/paywalls", s.listPaywalls)
	s.router.GET("/paywalls/:id", s.getPaywall)

	s.router.POST("/payments/verify", s.verifyPayment)

	s.router.POST("/purchases", s.recordPurchase)
	s.router.GET("/purchases", s.listPurchases)

	s.router.GET("/health", s.health)
	if s.gatherer != nil {
		s.router.GET("/metrics", s.metricsHandler())
	}
}
