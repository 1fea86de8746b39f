package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/response"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Loans    *LoanHandler
	Payments *PaymentHandler
	Fees     *FeeHandler
	Health   *HealthHandler
}

type RouterConfig struct {
	JWTSecret string
	JWTIssuer string
	Logger    *slog.Logger
}

func NewRouter(h Handlers, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware)
	if cfg.Logger != nil {
		router.Use(response.LoggingMiddleware(cfg.Logger))
	}

	// Health check
	router.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.Health.Ready).Methods(http.MethodGet)

	// Public fee endpoints
	public := router.PathPrefix("/api/v1/fees").Subrouter()
	public.Use(response.JSONMiddleware)
	public.HandleFunc("/active", h.Fees.Active).Methods(http.MethodGet)
	public.HandleFunc("/quote", h.Fees.Quote).Methods(http.MethodPost)

	/// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(response.JSONMiddleware)
	api.Use(AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))

	api.HandleFunc("/loans", h.Loans.Submit).Methods(http.MethodPost)
	api.HandleFunc("/loans", h.Loans.List).Methods(http.MethodGet)
	api.HandleFunc("/loans/reference/{reference}", h.Loans.GetByReference).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId:[0-9]+}", h.Loans.Get).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId:[0-9]+}/review", h.Loans.Review).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/approve", h.Loans.Approve).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/reject", h.Loans.Reject).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/cancel", h.Loans.Cancel).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/payment-verification/approve", h.Loans.VerifyPayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/payment-verification/reject", h.Loans.RejectPayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/id-verification/approve", h.Loans.VerifyIdentity).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/id-verification/reject", h.Loans.RejectIdentity).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/disburse", h.Loans.Disburse).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/disbursements", h.Loans.Disbursements).Methods(http.MethodGet)

	api.HandleFunc("/loans/{loanId:[0-9]+}/payments", h.Payments.List).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId:[0-9]+}/payments/card", h.Payments.PayByCard).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId:[0-9]+}/payments/crypto", h.Payments.CreateCryptoIntent).Methods(http.MethodPost)
	api.HandleFunc("/payments/{paymentId}/verify", h.Payments.VerifyCrypto).Methods(http.MethodPost)
	api.HandleFunc("/payments/{paymentId}/fail", h.Payments.MarkFailed).Methods(http.MethodPost)
	api.HandleFunc("/payments/{paymentId}/refund", h.Payments.Refund).Methods(http.MethodPost)

	api.HandleFunc("/admin/fees", h.Fees.Update).Methods(http.MethodPut)
	api.HandleFunc("/admin/fees/history", h.Fees.History).Methods(http.MethodGet)

	return router
}
