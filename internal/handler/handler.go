package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/rodasmf/loyalty/internal/auth"
	"github.com/rodasmf/loyalty/internal/handler/config"
	"github.com/rodasmf/loyalty/internal/ledger"
	"github.com/rodasmf/loyalty/internal/logger"
	"github.com/rodasmf/loyalty/internal/service"
)

const dateLayout = "2006-01-02"

func Serve(cfg config.Config, a auth.Auth, s *service.Service, zaplog *zap.Logger) error {
	h := newHandler(s, zaplog)
	router := NewRouter(cfg, a, h, zaplog)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	return srv.ListenAndServe()
}

func NewRouter(cfg config.Config, a auth.Auth, h *handler, zaplog *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Api-Key"},
		AllowCredentials: true,
	}))
	r.Use(logger.RequestLogMdlw(zaplog))

	r.Post("/api/auth/register", a.Register)
	r.Post("/api/auth/login", a.Login)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(a.Middleware)

			r.Post("/clients", h.CreateClient)
			r.Get("/clients", h.ListClients)
			r.Get("/clients/find", h.FindClients)
			r.Get("/clients/{id}", h.GetClient)
			r.Patch("/clients/{id}", h.UpdateClient)
			r.Delete("/clients/{id}", h.DeleteClient)

			r.Post("/rules", h.CreateRule)
			r.Get("/rules", h.ListRules)
			r.Put("/rules/{id}", h.UpdateRule)
			r.Delete("/rules/{id}", h.DeleteRule)

			r.Post("/expirations", h.CreateExpiration)
			r.Get("/expirations", h.ListExpirations)
			r.Get("/expirations/current", h.CurrentExpiration)
			r.Put("/expirations/{id}", h.UpdateExpiration)
			r.Delete("/expirations/{id}", h.DeleteExpiration)

			r.Post("/concepts", h.CreateConcept)
			r.Get("/concepts", h.ListConcepts)
			r.Put("/concepts/{id}", h.UpdateConcept)
			r.Delete("/concepts/{id}", h.DeactivateConcept)

			r.Post("/levels", h.CreateLevel)
			r.Get("/levels", h.ListLevels)
			r.Put("/levels/{id}", h.UpdateLevel)
			r.Delete("/levels/{id}", h.DeleteLevel)
			r.Get("/levels/client/{id}", h.GetClientLevel)

			r.Post("/points/assign", h.AssignPoints)
			r.Post("/points/redeem", h.Redeem)
			r.Get("/points/balance/{id}", h.GetBalance)
			r.Get("/points/lots", h.ListLots)
			r.Get("/points/history/{id}", h.RedemptionHistory)
			r.Get("/points/details/{id}", h.RedemptionDetails)
			r.Get("/points/expiring", h.FindExpiring)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.APIKeyMiddleware)

			r.Get("/integration/ping", h.Ping)
			r.Get("/integration/client/{document}", h.IntegrationClient)
		})
	})

	return r
}

type handler struct {
	service *service.Service
	zaplog  *zap.Logger
}

func newHandler(s *service.Service, zaplog *zap.Logger) *handler {
	return &handler{service: s, zaplog: zaplog}
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(responseJSON)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound) || errors.Is(err, ledger.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInsufficientData) ||
		errors.Is(err, ledger.ErrAmountIncorrect) ||
		errors.Is(err, ledger.ErrInvalidConcept) ||
		errors.Is(err, ledger.ErrConfiguration):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrInsufficientPoints):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathID(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}
