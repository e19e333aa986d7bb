package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the REST API. merchantAuth guards the merchant endpoints.
func NewRouter(h *Handler, merchantAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(h.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Post("/sms/ingest", h.HandleIngest)
		v1.Post("/sms/carrier/twilio", h.HandleTwilio)
		v1.Get("/payment-methods", h.HandlePaymentMethods)
		v1.Post("/payments", h.HandleSubmitPayment)
		v1.Get("/payments/{paymentID}", h.HandleGetPayment)

		v1.Group(func(m chi.Router) {
			m.Use(merchantAuth)
			m.Post("/sms/manual", h.HandleManualEntry)
			m.Post("/payments/{paymentID}/verify", h.HandleVerifyPayment)
			m.Get("/payments/{paymentID}/activity", h.HandlePaymentActivity)
			m.Post("/settings/webhook-secret/rotate", h.HandleRotateSecret)
			m.Post("/reconciliation/run", h.HandleRunReconciliation)
		})
	})
	return r
}
