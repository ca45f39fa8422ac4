package security

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Mensagens estáveis devolvidas no campo "error".
const (
	MsgRateLimited   = "Rate limit exceeded"
	MsgAuthRequired  = "Authentication required"
	MsgInvalidToken  = "Invalid authentication token"
	MsgInvalidJSON   = "Invalid JSON in request body"
	MsgBodyTooLarge  = "Request body too large"
	MsgInvalidInput  = "Invalid input data"
	MsgInternalError = "Internal security error"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type, x-forwarded-for",
	"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
}

// CORSHeaders devolve uma cópia do conjunto fixo de headers CORS.
func CORSHeaders() http.Header {
	h := make(http.Header, len(corsHeaders)+1)
	for k, v := range corsHeaders {
		h.Set(k, v)
	}
	return h
}

func preflightResponse() *Response {
	return &Response{Status: http.StatusOK, Header: CORSHeaders()}
}

// JSONResponse serializa body com os headers CORS.
func JSONResponse(status int, body any) *Response {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"` + MsgInternalError + `"}`)
	}
	h := CORSHeaders()
	h.Set("Content-Type", "application/json")
	return &Response{Status: status, Header: h, Body: b}
}

// ErrorResponse monta {"error": message, ...details}. details não pode
// sobrescrever "error".
func ErrorResponse(message string, status int, details map[string]any) *Response {
	body := make(map[string]any, len(details)+1)
	for k, v := range details {
		body[k] = v
	}
	body["error"] = message
	return JSONResponse(status, body)
}

// SuccessResponse serializa data; status 0 vira 200.
func SuccessResponse(data any, status int) *Response {
	if status == 0 {
		status = http.StatusOK
	}
	return JSONResponse(status, data)
}

func rateLimitedResponse(wait time.Duration) *Response {
	secs := retrySeconds(wait)
	resp := ErrorResponse(MsgRateLimited, http.StatusTooManyRequests, map[string]any{"retryAfter": secs})
	resp.Header.Set("Retry-After", strconv.Itoa(secs))
	return resp
}

// retrySeconds arredonda para cima e nunca devolve menos de 1.
func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
