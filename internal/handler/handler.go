package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/response"
)

const maxBodyBytes = 1 << 20

// decode reads a JSON body into dst. An empty body leaves dst untouched so optional
// payloads such as notes can be omitted.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		response.FromError(w, r, customError.WrapFieldError("body", "must be valid JSON: "+err.Error()))
		return false
	}
	return true
}

func principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
	}
	return p, ok
}

func loanIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["loanId"], 10, 64)
	if err != nil || id <= 0 {
		response.FromError(w, r, customError.WrapFieldError("loanId", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func paymentIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["paymentId"])
	if err != nil {
		response.FromError(w, r, customError.WrapFieldError("paymentId", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, customError.WrapFieldError(name, "must be a non-negative integer")
	}
	return n, nil
}

// ok writes data, surfacing a side-effect warning when there is one.
func ok(w http.ResponseWriter, status int, data interface{}, warning string) {
	if warning != "" {
		response.WithWarning(w, status, data, warning)
		return
	}
	response.JSON(w, status, data)
}
