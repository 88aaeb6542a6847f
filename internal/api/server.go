package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kassa/internal/handlers"
	"kassa/internal/middleware"
)

// Server wires the HTTP surface of the checkout.
type Server struct {
	router *gin.Engine
	srv    *http.Server
}

func NewServer(ginMode string, h *handlers.Handlers) *Server {
	gin.SetMode(ginMode)

	router := gin.New()
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		session := v1.Group("/checkout/:reservationId")
		{
			session.GET("", h.GetState)
			session.DELETE("", h.CloseSession)
			session.POST("/form", h.SubmitForm)
			session.POST("/warnings/acknowledge", h.AcknowledgeWarnings)
			session.POST("/warnings/reject", h.RejectWarnings)
			session.POST("/edit", h.Edit)
			session.POST("/confirm", h.Confirm)
			session.POST("/cancel", h.Cancel)
			session.POST("/code", h.ApplyCode)
			session.DELETE("/code", h.RemoveCode)
			session.DELETE("/payment-token", h.ClearToken)
			session.POST("/force-check", h.ForceCheck)
			session.GET("/payment-return", h.PaymentReturn)
			session.GET("/attempts", h.ListAttempts)
		}

		v1.POST("/payments/notifications", h.GatewayNotification)
	}

	return &Server{router: router}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run(port string) error {
	s.srv = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
