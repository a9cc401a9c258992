// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// statusForCode maps stable error codes to HTTP statuses. Codes absent
// from the map are internal failures and surface as 500 with a generic
// message so no storage or generator detail leaks to clients.
var statusForCode = map[string]int{
	"AUTH_INVALID_USERNAME":       http.StatusBadRequest,
	"AUTH_EMPTY_PASSWORD":         http.StatusBadRequest,
	"LEDGER_INVALID_AMOUNT":       http.StatusBadRequest,
	"PAYMENT_INVALID_AMOUNT":      http.StatusBadRequest,
	"PAYMENT_MISSING_TRANSACTION": http.StatusBadRequest,
	"FUSION_SAME_SOURCE":          http.StatusBadRequest,
	"SAVE_DUPLICATE_KEY":          http.StatusBadRequest,

	"AUTH_INVALID_CREDENTIALS": http.StatusUnauthorized,
	"SESSION_INVALID":          http.StatusUnauthorized,
	"SESSION_EXPIRED":          http.StatusUnauthorized,

	"AUTH_USERNAME_TAKEN":       http.StatusConflict,
	"FUSION_INSUFFICIENT_COUNT": http.StatusConflict,

	"AUTH_ACCOUNT_NOT_FOUND":    http.StatusNotFound,
	"PAYMENT_UNKNOWN_ACCOUNT":   http.StatusNotFound,
	"SAVE_CHARACTER_NOT_OWNED":  http.StatusNotFound,
	"FUSION_NOT_OWNED":          http.StatusNotFound,
	"FUSION_TEMPLATE_NOT_FOUND": http.StatusNotFound,
	"TEMPLATE_NOT_FOUND":        http.StatusNotFound,

	"GENERATOR_UNAVAILABLE": http.StatusBadGateway,
	"GENERATOR_REJECTED":    http.StatusBadGateway,
	"SPRITE_UNAVAILABLE":    http.StatusBadGateway,
	"FUSION_BAD_PAYLOAD":    http.StatusBadGateway,
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError renders an error response. Client errors echo their code
// and a short message; everything else is logged and masked.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := ""
	if o, ok := oops.AsOops(err); ok {
		code, _ = o.Code().(string)
	}

	status, known := statusForCode[code]
	if !known {
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	writeJSON(w, status, errorBody{Error: shortMessage(status), Code: code})
}

func shortMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusConflict:
		return "conflict"
	case http.StatusNotFound:
		return "not found"
	case http.StatusBadGateway:
		return "upstream service failed"
	default:
		return http.StatusText(status)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client is gone
	json.NewEncoder(w).Encode(body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
