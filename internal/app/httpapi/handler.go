// Package httpapi exposes the application services over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	app "github.com/R3E-Network/mintix/internal/app"
	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/metrics"
	"github.com/R3E-Network/mintix/internal/app/services/events"
	"github.com/R3E-Network/mintix/internal/app/services/payments"
	"github.com/R3E-Network/mintix/internal/app/services/tickets"
	"github.com/R3E-Network/mintix/internal/app/storage"
	"github.com/R3E-Network/mintix/internal/httputil"
	"github.com/R3E-Network/mintix/internal/middleware"
	"github.com/R3E-Network/mintix/pkg/logger"
)

// IdempotencyHeader names the request header carrying an idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// Options configures the HTTP surface.
type Options struct {
	Admins         map[string]struct{}
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	// AuditLogPath appends audit entries as JSON lines when set.
	AuditLogPath string
	// Background bounds idle rate limiter cleanup. Nil disables cleanup.
	Background context.Context
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
	log   *logger.Logger
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application, opts Options, log *logger.Logger) (http.Handler, error) {
	if log == nil {
		log = logger.NewDefault("http")
	}
	var sink auditSink
	if path := strings.TrimSpace(opts.AuditLogPath); path != "" {
		fileSink, err := newFileAuditSink(path)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		sink = fileSink
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 40
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	h := &handler{app: application, audit: newAuditLog(500, sink, log.Named("audit")), log: log}
	roles := middleware.NewRoles(opts.Admins)
	authMW := middleware.NewAuthMiddleware(application.Auth, roles, log.Named("auth-middleware"), nil)
	limiter := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, log.Named("ratelimit"))
	if opts.Background != nil {
		limiter.StartCleanup(opts.Background, time.Minute)
	}

	router := mux.NewRouter()
	router.Use(middleware.MetricsMiddleware())
	router.NotFoundHandler = http.HandlerFunc(h.notFound)

	router.HandleFunc("/", h.welcome).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	authRoutes := router.PathPrefix("/auth").Subrouter()
	authRoutes.Use(limiter.Handler)
	authRoutes.HandleFunc("/signup", h.signup).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", h.login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", h.logout).Methods(http.MethodPost)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(authMW.Handler, limiter.Handler, h.audit.middleware)

	v1.HandleFunc("/tickets/mint", h.mintTicket).Methods(http.MethodPost)
	v1.HandleFunc("/tickets/{address}", h.getTicket).Methods(http.MethodGet)
	v1.HandleFunc("/tickets/{address}/list", h.listTicket).Methods(http.MethodPost)
	v1.HandleFunc("/tickets/{address}/transfer", h.transferTicket).Methods(http.MethodPost)
	v1.HandleFunc("/tickets/{address}/transactions", h.ticketTransactions).Methods(http.MethodGet)

	v1.HandleFunc("/events", h.listEvents).Methods(http.MethodGet)
	v1.HandleFunc("/event", h.listEvents).Methods(http.MethodGet)
	v1.HandleFunc("/event", h.createEvent).Methods(http.MethodPost)
	v1.HandleFunc("/event/{id}", h.getEvent).Methods(http.MethodGet)
	v1.HandleFunc("/event/{id}", h.updateEvent).Methods(http.MethodPut)
	v1.HandleFunc("/event/{id}", h.deleteEvent).Methods(http.MethodDelete)

	v1.HandleFunc("/payments", h.listPayments).Methods(http.MethodGet)
	v1.HandleFunc("/payment", h.listPayments).Methods(http.MethodGet)
	v1.HandleFunc("/payment", h.createPayment).Methods(http.MethodPost)
	v1.HandleFunc("/payment/{id}", h.getPayment).Methods(http.MethodGet)
	v1.Handle("/payment/{id}", middleware.RequireAdmin(http.HandlerFunc(h.updatePayment))).Methods(http.MethodPut)
	v1.Handle("/payment/{id}", middleware.RequireAdmin(http.HandlerFunc(h.deletePayment))).Methods(http.MethodDelete)

	v1.Handle("/admin/audit", middleware.RequireAdmin(http.HandlerFunc(h.auditEntries))).Methods(http.MethodGet)

	cors := middleware.NewCORSMiddleware(opts.AllowedOrigins)
	tracing := middleware.NewTracingMiddleware(log)
	return cors.Handler(tracing.Handler(router)), nil
}

func (h *handler) welcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Welcome to the Mintix ticket API\n"))
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"operator": h.app.Chain.OperatorAddress(),
	})
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorResponse(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
}

// auth -----------------------------------------------------------------------

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	u, err := h.app.Auth.Signup(r.Context(), payload.Username, payload.Password, payload.Email)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "user created", u)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	token, err := h.app.Auth.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Envelope{Success: true, Message: "login successful", Token: token})
}

// logout is stateless; tokens expire on their own.
func (h *handler) logout(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteSuccess(w, http.StatusOK, "logged out", nil)
}

// tickets --------------------------------------------------------------------

func (h *handler) mintTicket(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		EventID         string          `json:"eventId"`
		TicketData      json.RawMessage `json:"ticketData"`
		SignerSecretKey string          `json:"signerSecretKey"`
	}
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	res, err := h.app.Tickets.Mint(r.Context(), tickets.MintRequest{
		TicketData:      payload.TicketData,
		EventID:         payload.EventID,
		IdempotencyKey:  r.Header.Get(IdempotencyHeader),
		RequestedBy:     middleware.GetUsername(r),
		SignerSecretKey: payload.SignerSecretKey,
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeOutcome(w, res.Status, res.Replayed, "ticket minted", res)
}

func (h *handler) getTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.app.Tickets.GetTicket(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "", t)
}

func (h *handler) listTicket(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Price           decimal.NullDecimal `json:"price"`
		SignerSecretKey string              `json:"signerSecretKey"`
	}
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	res, err := h.app.Tickets.List(r.Context(), tickets.ListRequest{
		TicketAddress:   mux.Vars(r)["address"],
		Price:           payload.Price,
		IdempotencyKey:  r.Header.Get(IdempotencyHeader),
		RequestedBy:     middleware.GetUsername(r),
		SignerSecretKey: payload.SignerSecretKey,
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeOutcome(w, res.Status, res.Replayed, "ticket listed for resale", res)
}

func (h *handler) transferTicket(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewOwner        string `json:"newOwner"`
		BuyerSecretKey  string `json:"buyerSecretKey"`
		SignerSecretKey string `json:"signerSecretKey"`
	}
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	res, err := h.app.Tickets.Transfer(r.Context(), tickets.TransferRequest{
		TicketAddress:   mux.Vars(r)["address"],
		NewOwner:        payload.NewOwner,
		BuyerSecretKey:  payload.BuyerSecretKey,
		IdempotencyKey:  r.Header.Get(IdempotencyHeader),
		RequestedBy:     middleware.GetUsername(r),
		SignerSecretKey: payload.SignerSecretKey,
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeOutcome(w, res.Status, res.Replayed, "ticket transferred", res)
}

func (h *handler) ticketTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	records, err := h.app.Tickets.History(r.Context(), mux.Vars(r)["address"], storagePage(page))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "", records)
}

// writeOutcome answers 202 while confirmation is still outstanding.
func writeOutcome(w http.ResponseWriter, status ticket.Status, replayed bool, message string, data any) {
	code := http.StatusOK
	if status == ticket.StatusPending {
		code = http.StatusAccepted
		message += "; confirmation pending"
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httputil.WriteSuccess(w, code, message, data)
}

// events ---------------------------------------------------------------------

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	out, err := h.app.Events.List(r.Context(), storagePage(page))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "", out)
}

func (h *handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var in events.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	evt, err := h.app.Events.Create(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, "event created", evt)
}

func (h *handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evt, err := h.app.Events.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "", evt)
}

func (h *handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	var in events.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	evt, err := h.app.Events.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "event updated", evt)
}

func (h *handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Events.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "event deleted", nil)
}

// payments -------------------------------------------------------------------

func (h *handler) listPayments(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	out, err := h.app.Payments.List(r.Context(), storagePage(page))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "", out)
}

func (h *handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var in payments.CreateInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	rec, err := h.app.Payments.Create(r.Context(), in, middleware.GetUsername(r))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, "payment recorded", rec)
}

func (h *handler) getPayment(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Payments.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "", rec)
}

func (h *handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	var in payments.UpdateInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	rec, err := h.app.Payments.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "payment updated", rec)
}

func (h *handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Payments.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "payment deleted", nil)
}

// admin ----------------------------------------------------------------------

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	httputil.WriteSuccess(w, http.StatusOK, "", h.audit.listLimit(limit))
}

func storagePage(p httputil.Pagination) storage.Page {
	return storage.Page{Limit: p.Limit, Offset: p.Offset()}
}
