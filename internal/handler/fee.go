package handler

import (
	"net/http"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/service"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/response"
)

type FeeHandler struct {
	service *service.FeeConfigService
}

func NewFeeHandler(service *service.FeeConfigService) *FeeHandler {
	return &FeeHandler{service: service}
}

// Active returns the fee configuration new approvals are priced with.
func (h *FeeHandler) Active(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Active(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, cfg)
}

func (h *FeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}

	var req domain.UpdateFeeConfigRequest
	if !decode(w, r, &req) {
		return
	}

	cfg, err := h.service.Update(r.Context(), p, req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, cfg)
}

func (h *FeeHandler) History(w http.ResponseWriter, r *http.Request) {
	p, authed := principal(w, r)
	if !authed {
		return
	}

	limit, err := intQuery(r, "limit", 20)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	configs, err := h.service.History(r.Context(), p, limit)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, configs)
}

// Quote prices an amount without creating anything.
func (h *FeeHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteFeeRequest
	if !decode(w, r, &req) {
		return
	}

	quote, err := h.service.Quote(r.Context(), req.Amount)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, quote)
}
