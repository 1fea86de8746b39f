package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/repository"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/service"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/response"
)

type LoanHandler struct {
	service *service.LoanService
}

func NewLoanHandler(service *service.LoanService) *LoanHandler {
	return &LoanHandler{service: service}
}

// Submit creates a new application for the caller.
func (h *LoanHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}

	var req domain.SubmitApplicationRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.Submit(r.Context(), p, req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	ok(w, http.StatusCreated, result.Loan, result.Warning)
}

// List returns the caller's loans, or every loan for administrators.
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}

	filter := repository.LoanFilter{
		Status:      domain.LoanStatus(r.URL.Query().Get("status")),
		ApplicantID: r.URL.Query().Get("applicant_id"),
	}
	var err error
	if filter.Limit, err = intQuery(r, "limit", 50); err != nil {
		response.FromError(w, r, err)
		return
	}
	if filter.Offset, err = intQuery(r, "offset", 0); err != nil {
		response.FromError(w, r, err)
		return
	}

	loans, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, loans)
}

func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	loanID, valid := loanIDParam(w, r)
	if !valid {
		return
	}

	loan, err := h.service.Get(r.Context(), p, loanID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, loan)
}

func (h *LoanHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}

	loan, err := h.service.GetByReference(r.Context(), p, mux.Vars(r)["reference"])
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, loan)
}

func (h *LoanHandler) Review(w http.ResponseWriter, r *http.Request) {
	h.withNotes(w, r, h.service.MarkUnderReview)
}

func (h *LoanHandler) Approve(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	loanID, valid := loanIDParam(w, r)
	if !valid {
		return
	}

	var req domain.ApproveRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.Approve(r.Context(), p, loanID, req)
	h.transition(w, r, result, err)
}

func (h *LoanHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.service.Reject)
}

func (h *LoanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.service.Cancel)
}

func (h *LoanHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	h.withNotes(w, r, h.service.AdminVerifyPayment)
}

func (h *LoanHandler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.service.AdminRejectPaymentVerification)
}

func (h *LoanHandler) VerifyIdentity(w http.ResponseWriter, r *http.Request) {
	h.withNotes(w, r, h.service.ApproveIDVerification)
}

func (h *LoanHandler) RejectIdentity(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.service.RejectIDVerification)
}

// Disburse sends the approved amount to the applicant's bank account.
func (h *LoanHandler) Disburse(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	loanID, valid := loanIDParam(w, r)
	if !valid {
		return
	}

	var bank domain.BankDetails
	if !decode(w, r, &bank) {
		return
	}

	result, err := h.service.InitiateDisbursement(r.Context(), p, loanID, bank)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	ok(w, http.StatusOK, result, result.Warning)
}

func (h *LoanHandler) Disbursements(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	loanID, valid := loanIDParam(w, r)
	if !valid {
		return
	}

	records, err := h.service.Disbursements(r.Context(), p, loanID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, records)
}

type textOperation func(ctx context.Context, p domain.Principal, loanID int64, text string) (*domain.TransitionResult, error)

func (h *LoanHandler) withNotes(w http.ResponseWriter, r *http.Request, op textOperation) {
	var req domain.NotesRequest
	h.withText(w, r, &req, func() string { return req.Notes }, op)
}

func (h *LoanHandler) withReason(w http.ResponseWriter, r *http.Request, op textOperation) {
	var req domain.ReasonRequest
	h.withText(w, r, &req, func() string { return req.Reason }, op)
}

func (h *LoanHandler) withText(w http.ResponseWriter, r *http.Request, body interface{}, text func() string, op textOperation) {
	p, authed := principal(w, r)
	if !authed {
		return
	}
	loanID, valid := loanIDParam(w, r)
	if !valid {
		return
	}
	if !decode(w, r, body) {
		return
	}

	result, err := op(r.Context(), p, loanID, text())
	h.transition(w, r, result, err)
}

func (h *LoanHandler) transition(w http.ResponseWriter, r *http.Request, result *domain.TransitionResult, err error) {
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	ok(w, http.StatusOK, result.Loan, result.Warning)
}
