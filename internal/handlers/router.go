package handlers

import (
	"net/http"

	"finassist/internal/config"
	"finassist/internal/middleware"
	"finassist/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Handler struct {
	cfg      config.Config
	ledger   Ledger
	owners   middleware.OwnerLookup
	audit    AuditReader
	health   SoftFailureCounter
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	logger   zerolog.Logger
}

func New(cfg config.Config, ledger Ledger, owners middleware.OwnerLookup, audit AuditReader, health SoftFailureCounter, hub *websocket.Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		ledger:   ledger,
		owners:   owners,
		audit:    audit,
		health:   health,
		hub:      hub,
		upgrader: websocket.NewUpgrader(cfg.AllowedOrigins),
		logger:   logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", h.Health)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.Get("/ws/balances", h.WSBalances)
		r.Get("/accounts", h.ListAccounts)
		r.Post("/accounts", h.CreateAccount)
		r.Get("/reconcile", h.Reconcile)
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Use(middleware.RequireAccountOwner(h.owners, "accountID"))
			r.Get("/", h.GetAccount)
			r.Delete("/", h.DeleteAccount)
			r.Get("/balance", h.GetBalance)
			r.Post("/recalculate", h.RecalculateBalance)
			r.Get("/snapshots", h.ListSnapshots)
			r.Get("/transactions", h.ListTransactions)
			r.Post("/transactions", h.CreateTransaction)
			r.Post("/duplicates", h.MarkDuplicates)
			r.Get("/adjustments", h.ListAdjustments)
			r.Post("/adjustments", h.CreateAdjustment)
		})

		r.Post("/transfers", h.CreateTransfer)
		r.Route("/transactions/{transactionID}", func(r chi.Router) {
			r.Get("/", h.GetTransaction)
			r.Patch("/", h.UpdateTransaction)
			r.Delete("/", h.DeleteTransaction)
			r.Get("/transfer", h.GetTransfer)
		})
		r.Route("/adjustments/{adjustmentID}", func(r chi.Router) {
			r.Get("/", h.GetAdjustment)
			r.Post("/reverse", h.ReverseAdjustment)
		})
		r.Get("/audit/{objectType}/{objectID}", h.ObjectHistory)
	})
	return router
}
