package main

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kingdavid28/iyaya-contracts/internal/config"
	"github.com/kingdavid28/iyaya-contracts/internal/contract"
	"github.com/kingdavid28/iyaya-contracts/internal/engine"
	"github.com/kingdavid28/iyaya-contracts/pkg/httpx"
)

func newRouter(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/contracts", func(api chi.Router) {
		if cfg.Auth.JWTSecret != "" {
			api.Use(requireAuth(cfg.Auth.JWTSecret))
		}

		api.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				BookingID     string         `json:"booking_id"`
				RequesterID   string         `json:"requester_id"`
				ProviderID    string         `json:"provider_id"`
				Terms         map[string]any `json:"terms"`
				Status        string         `json:"status"`
				EffectiveDate *time.Time     `json:"effective_date"`
				ExpiryDate    *time.Time     `json:"expiry_date"`
				Metadata      map[string]any `json:"metadata"`
				Version       int            `json:"version"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			createdBy := actorID(r)
			if createdBy == "" {
				createdBy = req.RequesterID
			}
			c, err := eng.CreateContract(r.Context(), engine.CreateParams{
				BookingID:     req.BookingID,
				RequesterID:   req.RequesterID,
				ProviderID:    req.ProviderID,
				Terms:         req.Terms,
				Status:        contract.Status(req.Status),
				EffectiveDate: req.EffectiveDate,
				ExpiryDate:    req.ExpiryDate,
				Metadata:      req.Metadata,
				Version:       req.Version,
				CreatedBy:     createdBy,
			})
			if err != nil {
				httpx.WriteContractError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "contract": c})
		})

		api.Get("/{contract_id}", func(w http.ResponseWriter, r *http.Request) {
			c, err := eng.GetContractByID(r.Context(), chi.URLParam(r, "contract_id"))
			if err != nil {
				httpx.WriteContractError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "contract": c})
		})

		api.Post("/{contract_id}:sign", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Signer        string `json:"signer"`
				Signature     string `json:"signature"`
				SignatureHash string `json:"signature_hash"`
				IPAddress     string `json:"ip_address"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			if req.IPAddress == "" {
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					req.IPAddress = host
				}
			}
			c, err := eng.SignContract(r.Context(), chi.URLParam(r, "contract_id"), contract.Party(req.Signer), engine.SignatureMaterial{
				Signature:     req.Signature,
				SignatureHash: req.SignatureHash,
				IPAddress:     req.IPAddress,
			})
			if err != nil {
				httpx.WriteContractError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "contract": c})
		})

		api.Post("/{contract_id}:status", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Status   string         `json:"status"`
				Metadata map[string]any `json:"metadata"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			c, err := eng.UpdateContractStatus(r.Context(), chi.URLParam(r, "contract_id"), contract.Status(req.Status), req.Metadata)
			if err != nil {
				httpx.WriteContractError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "contract": c})
		})

		api.Post("/{contract_id}:resend", func(w http.ResponseWriter, r *http.Request) {
			resent := eng.ResendContract(r.Context(), chi.URLParam(r, "contract_id"), actorID(r))
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "resent": resent})
		})

		api.Post("/{contract_id}:export", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				IncludeSignatures bool   `json:"include_signatures"`
				Locale            string `json:"locale"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			res, err := eng.GenerateContractPDF(r.Context(), chi.URLParam(r, "contract_id"), engine.ExportOptions{
				CallerID:          actorID(r),
				IncludeSignatures: req.IncludeSignatures,
				Locale:            req.Locale,
			})
			if err != nil {
				if errors.Is(err, engine.ErrAccessDenied) {
					httpx.WriteError(w, 403, "ACCESS_DENIED", err.Error(), nil)
					return
				}
				httpx.WriteContractError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "export": res})
		})

		api.Get("/{contract_id}/events", func(w http.ResponseWriter, r *http.Request) {
			evs, err := eng.ContractEvents(r.Context(), chi.URLParam(r, "contract_id"))
			if err != nil {
				httpx.WriteContractError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "events": evs})
		})
	})

	r.Group(func(api chi.Router) {
		if cfg.Auth.JWTSecret != "" {
			api.Use(requireAuth(cfg.Auth.JWTSecret))
		}

		api.Get("/bookings/{booking_id}/contracts", func(w http.ResponseWriter, r *http.Request) {
			list, err := eng.GetContractsByBooking(r.Context(), chi.URLParam(r, "booking_id"))
			if err != nil {
				httpx.WriteContractError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "contracts": list})
		})

		api.Get("/users/{user_id}/contracts", func(w http.ResponseWriter, r *http.Request) {
			role := contract.Party(r.URL.Query().Get("role"))
			list, err := eng.GetContractsForUser(r.Context(), chi.URLParam(r, "user_id"), role)
			if err != nil {
				httpx.WriteContractError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "contracts": list})
		})
	})

	return r
}
