package security

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"marketplace-gateway/middleware/security/domain"
	"marketplace-gateway/middleware/security/sanitize"
)

type ctxKey int

const (
	userKey ctxKey = iota
	dataKey
	clientIPKey
)

// Middleware adapta o Endpoint para net/http. Em caso de sucesso o usuário,
// os dados sanitizados e o IP do cliente ficam no contexto da requisição
// (UserFrom, DataFrom, ClientIPFrom) e a resposta já leva os headers CORS.
func (e *Endpoint) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := RequestFromHTTP(r, e.maxBody)
			if err != nil && !errors.Is(err, ErrBodyTooLarge) {
				e.log.Warn("Failed to read request body", map[string]any{"error": err.Error()})
				ErrorResponse(MsgInvalidJSON, http.StatusBadRequest, nil).Write(w)
				return
			}

			res := e.Check(r.Context(), req)
			if res.Terminal() {
				res.Response.Write(w)
				return
			}

			ctx := r.Context()
			if res.User != nil {
				ctx = context.WithValue(ctx, userKey, res.User)
			}
			if res.SanitizedData != nil {
				ctx = context.WithValue(ctx, dataKey, *res.SanitizedData)
			}
			ctx = context.WithValue(ctx, clientIPKey, ClientIP(req))

			for k, v := range corsHeaders {
				w.Header().Set(k, v)
			}
			if e.cfg.RateLimitHeaders && res.RateLimit != nil {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(e.cfg.RateLimit.MaxRequests))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.RateLimit.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.RateLimit.ResetTime/1000, 10))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserFrom(ctx context.Context) (*domain.Principal, bool) {
	u, ok := ctx.Value(userKey).(*domain.Principal)
	return u, ok && u != nil
}

func DataFrom(ctx context.Context) (sanitize.Value, bool) {
	v, ok := ctx.Value(dataKey).(sanitize.Value)
	return v, ok
}

func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
