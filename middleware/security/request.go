package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// Request é a entrada neutra do gateway, independente do runtime HTTP.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// RemoteAddr é opcional; só é usado quando não há headers de proxy.
	RemoteAddr string

	// oversized marca um corpo que passou do limite e foi descartado.
	oversized bool
}

// Response é uma resposta terminal pronta para ser escrita.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Write copia a resposta para w. Headers já presentes em w com o mesmo nome
// são substituídos.
func (r *Response) Write(w http.ResponseWriter) {
	h := w.Header()
	for k, vs := range r.Header {
		h.Del(k)
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	w.WriteHeader(r.Status)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}

// ErrBodyTooLarge indica um corpo acima do limite do endpoint. O Request
// devolvido junto continua utilizável: Check responde 413 na etapa do corpo,
// depois do preflight, do rate limit e da autenticação.
var ErrBodyTooLarge = errors.New("request body too large")

// RequestFromHTTP lê o corpo (até maxBody bytes) e o devolve a r.Body para
// que o próximo handler também possa lê-lo.
func RequestFromHTTP(r *http.Request, maxBody int64) (Request, error) {
	req := Request{
		Method:     r.Method,
		URL:        r.URL.String(),
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
	}
	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	_ = r.Body.Close()
	if err != nil {
		return req, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBody {
		r.Body = http.NoBody
		req.oversized = true
		return req, ErrBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	req.Body = body
	return req, nil
}

// ClientIP devolve o IP do cliente, em ordem:
// primeiro IP do X-Forwarded-For, X-Real-IP, host do RemoteAddr e, por fim,
// "unknown".
func ClientIP(req Request) string {
	// pega o primeiro IP do X-Forwarded-For (cliente original)
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(req.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if req.RemoteAddr != "" {
		return req.RemoteAddr
	}
	return "unknown"
}

// bearerToken extrai o token de "Authorization: Bearer <token>".
func bearerToken(h string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	if i := strings.IndexByte(tok, ' '); i >= 0 {
		tok = tok[:i]
	}
	return tok, tok != ""
}
