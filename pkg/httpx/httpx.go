package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/kingdavid28/iyaya-contracts/internal/contract"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}

// WriteContractError maps the contract error taxonomy onto HTTP statuses.
func WriteContractError(w http.ResponseWriter, err error) {
	var verr *contract.ValidationError
	if errors.As(err, &verr) {
		WriteError(w, 400, "VALIDATION_ERROR", verr.Error(), map[string]any{"field": verr.Field})
		return
	}
	var nferr *contract.NotFoundError
	if errors.As(err, &nferr) {
		WriteError(w, 404, "NOT_FOUND", nferr.Error(), nil)
		return
	}
	var exerr *contract.ExportError
	if errors.As(err, &exerr) {
		WriteError(w, 502, "EXPORT_ERROR", exerr.Error(), nil)
		return
	}
	var cerr *contract.ConnectionError
	if errors.As(err, &cerr) {
		WriteError(w, 503, "STORE_UNAVAILABLE", cerr.Error(), nil)
		return
	}
	WriteError(w, 500, "INTERNAL", err.Error(), nil)
}
