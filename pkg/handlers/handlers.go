// Package handlers wires the HTTP surface: routing, authentication, logging
// and metrics around the deposit, balance and activity endpoints.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streampass/wallet-deposits/pkg/activity"
	"github.com/streampass/wallet-deposits/pkg/auth"
	depositsvc "github.com/streampass/wallet-deposits/pkg/deposits"
	activitieshandler "github.com/streampass/wallet-deposits/pkg/handlers/activities"
	balanceshandler "github.com/streampass/wallet-deposits/pkg/handlers/balances"
	depositshandler "github.com/streampass/wallet-deposits/pkg/handlers/deposits"
	"github.com/streampass/wallet-deposits/pkg/middleware"
	"github.com/streampass/wallet-deposits/pkg/queue"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

// Deps carries everything the router needs.
type Deps struct {
	Store         storage.Storage
	Service       *depositsvc.Service
	Trail         *activity.Trail
	Queue         queue.EventQueue
	Auth          *auth.Middleware
	WebhookSecret string
	Logger        *slog.Logger
}

// NewRouter builds the chi router. The webhook and health endpoints are
// unauthenticated; everything buyer-facing sits behind the bearer check.
func NewRouter(deps Deps) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.Metrics)

	depositHandler := depositshandler.NewDepositsHandler(deps.Service, deps.Queue, deps.WebhookSecret, deps.Logger)
	balanceHandler := balanceshandler.NewBalancesHandler(deps.Store)
	activityHandler := activitieshandler.NewActivitiesHandler(deps.Trail)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Post("/webhooks/payments", depositHandler.Webhook)

	router.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Post("/deposits", depositHandler.InitiateDeposit)
		r.Post("/deposits/update", depositHandler.UpdateDeposit)
		r.Get("/deposits", depositHandler.ListDeposits)
		r.Get("/deposits/{depositId}", depositHandler.GetDeposit)

		r.Get("/balances", balanceHandler.GetBalance)
		r.Get("/activities", activityHandler.ListActivities)
	})

	return router
}
