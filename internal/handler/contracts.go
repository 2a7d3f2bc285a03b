package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ContractRegistry manages the monitored contract list.
type ContractRegistry interface {
	List(ctx context.Context) ([]string, error)
	Set(ctx context.Context, ids []string) ([]string, error)
	Add(ctx context.Context, id string) ([]string, error)
	Remove(ctx context.Context, id string) ([]string, error)
	Reset(ctx context.Context) ([]string, error)
}

type contractsResponse struct {
	Contracts []string `json:"contracts"`
}

func writeContracts(w http.ResponseWriter, status int, ids []string) {
	if ids == nil {
		ids = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(contractsResponse{Contracts: ids})
}

func ListContracts(reg ContractRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := reg.List(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to list contracts"}`, http.StatusInternalServerError)
			return
		}
		writeContracts(w, http.StatusOK, ids)
	}
}

func SetContracts(reg ContractRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contractsResponse
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		ids, err := reg.Set(r.Context(), req.Contracts)
		if err != nil {
			http.Error(w, `{"error":"failed to save contracts"}`, http.StatusInternalServerError)
			return
		}
		writeContracts(w, http.StatusOK, ids)
	}
}

func AddContract(reg ContractRegistry) http.HandlerFunc {
	type request struct {
		ContractID string `json:"contractId"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		req.ContractID = strings.TrimSpace(req.ContractID)
		if req.ContractID == "" {
			http.Error(w, `{"error":"contractId required"}`, http.StatusBadRequest)
			return
		}
		ids, err := reg.Add(r.Context(), req.ContractID)
		if err != nil {
			http.Error(w, `{"error":"failed to add contract"}`, http.StatusInternalServerError)
			return
		}
		writeContracts(w, http.StatusCreated, ids)
	}
}

func RemoveContract(reg ContractRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "contractId"))
		if id == "" {
			http.Error(w, `{"error":"contractId required"}`, http.StatusBadRequest)
			return
		}
		ids, err := reg.Remove(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"failed to remove contract"}`, http.StatusInternalServerError)
			return
		}
		writeContracts(w, http.StatusOK, ids)
	}
}

// ResetContracts drops the stored list, restoring the configured defaults.
func ResetContracts(reg ContractRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := reg.Reset(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to reset contracts"}`, http.StatusInternalServerError)
			return
		}
		writeContracts(w, http.StatusOK, ids)
	}
}
