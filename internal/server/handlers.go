// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fuseforge/fuseforge/internal/collection"
	"github.com/fuseforge/fuseforge/internal/fusion"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "malformed JSON body")
		return false
	}
	return true
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	accountID, err := s.directory.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"account_id": accountID.String(),
		"username":   req.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := s.directory.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	token, err := s.tokens.Issue(account.ID, account.Username)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"account_id": account.ID.String(),
		"username":   account.Username,
	})
}

type saveBody struct {
	Gold       int64                        `json:"gold"`
	Collection []collection.OwnedCharacter  `json:"collection"`
	Team       [collection.TeamSize]*string `json:"team"`
	UpdatedAt  time.Time                    `json:"updated_at,omitzero"`
}

// handleGetSave returns the stored save, or the starting state for an
// account that has never saved.
func (s *Server) handleGetSave(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	save, err := s.saves.Load(r.Context(), claims.AccountID)
	if errors.Is(err, collection.ErrNotFound) {
		save = collection.NewStartingSave(claims.AccountID)
		err = nil
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if save.Collection == nil {
		save.Collection = []collection.OwnedCharacter{}
	}
	writeJSON(w, http.StatusOK, saveBody{
		Gold:       save.Gold,
		Collection: save.Collection,
		Team:       save.Team,
		UpdatedAt:  save.UpdatedAt,
	})
}

func (s *Server) handlePutSave(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	var req saveBody
	if !decodeBody(w, r, &req) {
		return
	}

	save := &collection.GameSave{
		AccountID:  claims.AccountID,
		Gold:       req.Gold,
		Collection: req.Collection,
		Team:       req.Team,
	}
	if err := s.saves.Save(r.Context(), claims.AccountID, save); err != nil {
		writeError(w, s.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCharacters(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.List(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": templates})
}

type fuseRequest struct {
	FirstID  string `json:"first_template_id"`
	SecondID string `json:"second_template_id"`
}

func (s *Server) handleFuse(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	var req fuseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	firstID, err := ulid.Parse(req.FirstID)
	if err != nil {
		badRequest(w, "first_template_id must be a valid id")
		return
	}
	secondID, err := ulid.Parse(req.SecondID)
	if err != nil {
		badRequest(w, "second_template_id must be a valid id")
		return
	}

	result, err := s.fusions.Fuse(r.Context(), fusion.Request{
		AccountID: claims.AccountID,
		FirstID:   firstID,
		SecondID:  secondID,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type paymentRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	TransactionID string `json:"transaction_id"`
}

func (s *Server) handlePaymentConfirm(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.payments.Confirm(r.Context(), claims.Username, req.AmountCents, req.TransactionID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"credited_cents": req.AmountCents})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	balance, err := s.ledger.Balance(r.Context(), claims.AccountID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"balance_cents": balance})
}
