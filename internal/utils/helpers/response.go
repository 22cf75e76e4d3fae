package helpers

import (
	"encoding/json"
	"errors"
	"net/http"

	"codequill/internal/models"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(Response{Data: data, Error: ""})
	if err != nil {
		return
	}
}

func Error(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(Response{Data: nil, Error: errMsg})
	if err != nil {
		return
	}
}

// ErrorFrom переводит ошибку доменной таксономии в HTTP-статус.
func ErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidCredentialsFormat):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrAuthenticationFailed),
		errors.Is(err, models.ErrNotAuthenticated):
		Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrForbidden):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDuplicateAccount):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrPreconditionFailed):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrUpdateRejected):
		Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrRemoteUnavailable):
		Error(w, http.StatusBadGateway, err.Error())
	default:
		Error(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
	}
}
