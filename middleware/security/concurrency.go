package security

import (
	"net/http"
	"time"

	"marketplace-gateway/middleware/security/application"
	"marketplace-gateway/middleware/security/domain"
)

// MsgServerBusy é a mensagem do 503 quando não há vaga.
const MsgServerBusy = "Server busy"

// LimitInFlight limita as requisições simultâneas ao tamanho de pool. Sem
// vaga dentro de acquireTimeout a resposta é 503. pool nil desliga o limite.
func LimitInFlight(pool domain.SlotPool, acquireTimeout time.Duration) func(next http.Handler) http.Handler {
	if pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	svc := application.ConcurrencyService{Pool: pool, AcquireTimeout: acquireTimeout}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				ErrorResponse(MsgServerBusy, http.StatusServiceUnavailable, nil).Write(w)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
