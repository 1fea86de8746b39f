package handler

import (
	"net/http"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/service"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/response"
)

type PaymentHandler struct {
	service *service.PaymentService
}

func NewPaymentHandler(service *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// PayByCard charges the processing fee synchronously.
func (h *PaymentHandler) PayByCard(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	loanID, valid := loanIDParam(w, r)
	if !valid {
		return
	}

	var req domain.CardPaymentRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.PayFeeByCard(r.Context(), p, loanID, req.CardToken)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	ok(w, http.StatusOK, result, result.Warning)
}

// CreateCryptoIntent returns the address and amount the applicant must send.
func (h *PaymentHandler) CreateCryptoIntent(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	loanID, valid := loanIDParam(w, r)
	if !valid {
		return
	}

	var req domain.CryptoIntentRequest
	if !decode(w, r, &req) {
		return
	}

	intent, err := h.service.CreateCryptoIntent(r.Context(), p, loanID, req.Currency)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, intent)
}

func (h *PaymentHandler) VerifyCrypto(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	paymentID, valid := paymentIDParam(w, r)
	if !valid {
		return
	}

	result, err := h.service.VerifyCryptoPayment(r.Context(), p, paymentID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	ok(w, http.StatusOK, result, result.Warning)
}

func (h *PaymentHandler) MarkFailed(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	paymentID, valid := paymentIDParam(w, r)
	if !valid {
		return
	}

	var req domain.ReasonRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.MarkPaymentFailed(r.Context(), p, paymentID, req.Reason)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	ok(w, http.StatusOK, result, result.Warning)
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	paymentID, valid := paymentIDParam(w, r)
	if !valid {
		return
	}

	var req domain.ReasonRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.RefundPayment(r.Context(), p, paymentID, req.Reason)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	ok(w, http.StatusOK, result, result.Warning)
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	loanID, valid := loanIDParam(w, r)
	if !valid {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), p, loanID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, payments)
}
