package middleware

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError writes the JSON rejection body. Every 401 looks the same so clients cannot
// tell which check failed.
func writeError(w http.ResponseWriter, status int) {
	body := errorBody{Code: "internal", Message: http.StatusText(status)}
	switch status {
	case http.StatusTooManyRequests:
		body = errorBody{Code: "rate_limited", Message: "too many requests"}
	case http.StatusUnauthorized:
		body = errorBody{Code: "unauthorized", Message: "authentication required"}
	case http.StatusForbidden:
		body = errorBody{Code: "forbidden", Message: "access denied"}
	case http.StatusServiceUnavailable:
		body = errorBody{Code: "unavailable", Message: "service unavailable"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: body})
}
